package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyExportID   = "export_id"
	KeyPath       = "path"
	KeyURI        = "uri"
	KeyKind       = "kind"
	KeySignature  = "signature"
	KeyFilter     = "filter"
	KeyDigest     = "digest"
	KeyOutput     = "output"
	KeyRank       = "rank"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ExportID(id string) slog.Attr      { return slog.String(KeyExportID, id) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func URI(u string) slog.Attr            { return slog.String(KeyURI, u) }
func Kind(k string) slog.Attr           { return slog.String(KeyKind, k) }
func Signature(s string) slog.Attr      { return slog.String(KeySignature, s) }
func Filter(f string) slog.Attr         { return slog.String(KeyFilter, f) }
func Digest(d string) slog.Attr         { return slog.String(KeyDigest, d) }
func Output(o string) slog.Attr         { return slog.String(KeyOutput, o) }
func Rank(r int) slog.Attr              { return slog.Int(KeyRank, r) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr         { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr     { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil { return slog.String(KeyError, "") }
	return slog.String(KeyError, err.Error())
}
