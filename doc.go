// Package lspressoshot is an integration-testing harness for Language
// Server Protocol servers. It provisions an isolated workspace on disk,
// launches the server under test as a subprocess, speaks JSON-RPC to it
// over stdio, issues a single request at a chosen cursor position, and
// compares the server's response against an expected value with a
// field-level diff on mismatch.
//
// A minimal test looks like:
//
//	func TestHoverReportsType(t *testing.T) {
//		tc := lspressoshot.NewTestCase("/usr/bin/my-server",
//			lspressoshot.NewTestFile("main.rs", "fn main() {}\n")).
//			WithCursor(0, 3).
//			WithTimeout(10 * time.Second)
//		lspressoshot.Shot(t, lspressoshot.TestHover(tc, &expected))
//	}
package lspressoshot
