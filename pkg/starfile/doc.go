// Package starfile loads Runfile.star files. Runfiles are plain Starlark
// scripts evaluated with a set of predeclared builtins (task, describe,
// import_dir, sh, run, ...) that report their declarations to a runx.Runfile.
package starfile
