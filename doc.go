// Package b3 builds behavior-tree projects: it resolves subtree references,
// computes which outcomes each node can reach, merges variable declarations
// across imported files, validates every node against its type definition
// and writes normalized copies of the trees.
//
// # Pipeline
//
// For every tree document under the project root, a build
//
//  1. inlines subtree references and renumbers node ids depth-first from 1,
//     computing each node's reachable-outcome flags bottom-up;
//  2. prefixes the ids with the tree's prefix;
//  3. runs the onProcessTree and onProcessNode build-script hooks, which may
//     rewrite or delete the tree or single nodes;
//  4. merges the variables of the tree, its imports and its subtrees;
//  5. validates the tree;
//  6. writes it to the mirrored path under the output directory unless the
//     tree is marked "export": false, and calls onWriteFile.
//
// Problems never stop the run. They are collected as diagnostics, and
// [Engine.Build] reports only whether any were found.
//
// # Usage
//
//	e, err := b3.New("path/to/project")
//	if err != nil { ... }
//
//	hasErrors, err := e.Build(ctx, "build")
//	for _, d := range e.Diagnostics() {
//		fmt.Println(d)
//	}
//
// # Incremental builds
//
// With a manifest attached through [WithStore], a file is skipped when its
// content, the modification times of everything it imports or references,
// the build script and the node definitions are unchanged since the last
// build and its output still exists. The diagnostics recorded for a skipped
// file are reported again. [WithForce] disables skipping.
//
// # Build scripts
//
// The workspace setting buildScript names a Risor script. See the
// internal/runtime package for the hook functions and globals it can use.
package b3
