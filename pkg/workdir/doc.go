// Package workdir manages ephemeral working directories with guaranteed
// release.
//
// A Manager hands out uniquely named directories under a base root. Each
// acquisition returns a release function that removes the directory
// recursively and is safe to call more than once, so callers can defer it on
// every exit path. CleanupAll force-releases everything still outstanding —
// useful during crash recovery or forced shutdown.
//
//	m, err := workdir.NewManager("")
//	if err != nil { ... }
//	defer m.CleanupAll()
//
//	dir, release, err := m.TempDir()
//	if err != nil { ... }
//	defer release()
package workdir
