// Package runx implements a directory-scoped task runner.
// Runfiles declare tasks, a Manager loads them together with their imports and
// routes command-line tokens to the task with the longest matching name.
// The file formats themselves are handled by Loader implementations.
package runx
