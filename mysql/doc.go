/*
Package mysql implements a resilient, concurrency-safe MySQL access layer
for agent-style callers.

Every worker owns at most one live connection handle at a time; handles are
never shared between workers, because the MySQL wire protocol is not safe
under concurrent use of one session. The Manager hands out per-worker
handles, retires them when they exceed a maximum age or report a fault, and
re-creates them behind a single creation lock with retry and exponential
backoff. Steady-state access to an already-valid handle is lock-free.

Query execution with a hard wall-clock deadline goes through
ExecuteWithTimeout, which runs each statement on a throwaway worker with its
own single-use handle. The deadline is advisory: the caller stops waiting,
but the in-flight statement is not forcibly aborted server-side. The worker
invalidates its handle when the statement returns, so an abandoned session
is physically closed rather than left behind.

LimitResultSize caps an already-fetched result set to a character budget by
dropping a trailing suffix of rows, without re-querying.
*/
package mysql
