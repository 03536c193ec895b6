package db

// Op constants map to Valkey/Redis command names (or SQL statements) for error context.
const (
	OpDel     = "DEL"
	OpHDel    = "HDEL"
	OpHGetAll = "HGETALL"
	OpHSet    = "HSET"
	OpExists  = "EXISTS"
	OpScan    = "SCAN"
	OpPing    = "PING"
	OpSelect  = "SELECT"
	OpUpsert  = "UPSERT"
	OpDelete  = "DELETE"
	OpBegin   = "BEGIN"
	OpCommit  = "COMMIT"
	OpExec    = "EXEC"
	OpMulti   = "MULTI"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
