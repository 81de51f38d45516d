// Package task runs report generation out of band from the HTTP request that
// asked for it. Runner owns the bounded queue and worker goroutines;
// ReportExecutor owns the report record lifecycle, from submission through
// execution and recovery after a restart.
package task
