// Package main Arbor worktree manager API
//
//	@title			Arbor API
//	@version		1.0.0
//	@description	Arbor manages local git repositories and their worktrees
//
//	@host			localhost:3000
//	@BasePath		/api/v1
package main

import "github.com/arbor-dev/arbor/internal"

func main() {
	internal.Run()
}
