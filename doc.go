// Package embedload is a module-resolution overlay for Risor scripts shipped
// inside a Go binary.
//
// Every import is answered by the first stage that matches:
//
//  1. Blocklist: names the host already provides; nothing is loaded.
//  2. Native modules: built in Go on first import, reused afterwards.
//  3. Absolute archive paths (":/lib/util.risor").
//  4. The virtual search roots, in order. Fixed roots come before roots found
//     through discovery markers, and the first root holding the file wins.
//  5. Risor's local importer over the real directories on the load path.
//
// Archive identifiers are canonical: relative segments are collapsed and
// stray Windows drive letters are removed, so every spelling of a module maps
// to one identifier. Each identifier is evaluated at most once per Engine:
// its top level runs on the first import, and every later import, in any
// script run, binds the values that run produced.
//
// # Usage
//
//	e, err := embedload.New(ctx)
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.Run(ctx, ":/examples/hello", nil)
//
// Scripts see three extra globals besides Risor's builtins: log, script_id and
// read_resource(path [, caller]), which reads data files relative to the
// running script from the archive or disk and returns "" when neither has it.
//
// # Archives
//
// The default archive is the embedded scripts directory. [WithArchiveFS]
// serves any fs.FS instead, and the configuration's archive setting selects a
// read-only SQLite bundle with one row per file.
package embedload
