package tools

import (
	"os"
	"os/exec"
)

// ---------------------------------------------------------------------------
// Interfaces - local to this package, following Go idiom
// ---------------------------------------------------------------------------

// fileStatter abstracts existence checks on the filesystem.
type fileStatter interface {
	Stat(name string) (os.FileInfo, error)
}

// envProvider abstracts environment and path lookup operations.
type envProvider interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to standard library
// ---------------------------------------------------------------------------

// Compile-time interface verification.
var (
	_ fileStatter = osFileStatter{}
	_ envProvider = osEnvProvider{}
)

type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string { return os.Getenv(key) }

func (osEnvProvider) LookPath(file string) (string, error) { return exec.LookPath(file) }
