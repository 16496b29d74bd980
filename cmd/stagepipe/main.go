// Package main provides the stagepipe CLI.
//
// stagepipe runs a demo photo gallery pipeline (download, resize, upload) described by a
// configuration file, and reports how many photos went through.
//
// Usage:
//
//	stagepipe run --config pipeline.yml --items 1000
//
// See --help for all available options.
package main

func main() {
	Execute()
}
