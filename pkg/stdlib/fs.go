// Package stdlib provides the natively-compiled extension modules a
// deployed bundle can register with the bootstrap: sandboxed host
// functions exposed to frozen code through the syscall table.
package stdlib

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/runtime"
	"github.com/agenthands/nfreeze/pkg/vm"
)

var (
	ErrPathEscape   = errors.New("stdlib/fs: path escape violation")
	ErrFileTooLarge = errors.New("stdlib/fs: file size limit exceeded")
)

// Syscall indices claimed by the fs extension.
const (
	sysReadFile  = runtime.HostBase + 0
	sysWriteFile = runtime.HostBase + 1
)

// FSBuiltins is merged into the compiler when freezing code that uses
// the fs module.
var FSBuiltins = map[string]uint32{
	"read_file":  sysReadFile,
	"write_file": sysWriteFile,
}

// FSSandbox jails file access under a root directory.
type FSSandbox struct {
	Root        string
	MaxFileSize int
}

func NewFSSandbox(root string, maxFileSize int) *FSSandbox {
	absRoot, _ := filepath.Abs(root)
	return &FSSandbox{
		Root:        absRoot,
		MaxFileSize: maxFileSize,
	}
}

// Module returns the inittab entry for the fs extension.
func (s *FSSandbox) Module() runtime.ExtensionModule {
	return runtime.ExtensionModule{
		Name: "fs",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			if err := i.BindHost(sysReadFile, s.ReadFile); err != nil {
				return nil, err
			}
			if err := i.BindHost(sysWriteFile, s.WriteFile); err != nil {
				return nil, err
			}
			mod := &runtime.Module{Name: "fs", Attrs: map[string]string{"root": s.Root}}
			return mod, nil
		},
	}
}

func (s *FSSandbox) jail(p string) (string, error) {
	cleanPath := filepath.Join(s.Root, filepath.Clean("/"+p))
	if !strings.HasPrefix(cleanPath, s.Root) {
		return "", ErrPathEscape
	}
	return cleanPath, nil
}

// WriteFile: ( content path -- None )
func (s *FSSandbox) WriteFile(m *vm.Machine) error {
	path := value.UnpackString(m.Pop().Data, m.Arena)
	content := value.UnpackString(m.Pop().Data, m.Arena)

	cleanPath, err := s.jail(path)
	if err != nil {
		return err
	}

	if len(content) > s.MaxFileSize {
		return ErrFileTooLarge
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(cleanPath, []byte(content), 0644); err != nil {
		return err
	}

	m.Push(value.None())
	return nil
}

// ReadFile: ( path -- content )
func (s *FSSandbox) ReadFile(m *vm.Machine) error {
	path := value.UnpackString(m.Pop().Data, m.Arena)

	cleanPath, err := s.jail(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return err
	}
	if len(data) > s.MaxFileSize {
		return ErrFileTooLarge
	}

	offset, err := m.WriteArena(data)
	if err != nil {
		return err
	}
	m.Push(value.Value{
		Type: value.TypeString,
		Data: value.PackString(offset, uint32(len(data))),
	})
	return nil
}
