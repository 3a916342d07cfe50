// Package check holds invariant assertions. They panic in binaries built with
// -tags debug and compile to nothing otherwise.
package check
