package launch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/agenthands/nfreeze/pkg/stdlib"
)

// Manifest describes a deployed bundle on disk: the frozen blobs, the
// argument encoding, the search path extras, and the sandboxed host
// modules the frozen code may import. Build tooling writes it next to
// the blobs; the nfreeze command reads it back.
type Manifest struct {
	App struct {
		Name string `toml:"name"`
		Main string `toml:"main"`
	} `toml:"app"`

	Runtime struct {
		Encoding string `toml:"encoding"` // narrow | wide | wide-escape
		Gas      int    `toml:"gas"`
	} `toml:"runtime"`

	Frozen struct {
		Bootstrap string `toml:"bootstrap"`
		Main      string `toml:"main"`
	} `toml:"frozen"`

	Path struct {
		Extra []string `toml:"extra"`
	} `toml:"path"`

	Resources struct {
		Root string `toml:"root"`
	} `toml:"resources"`

	FS *struct {
		Root        string `toml:"root"`
		MaxFileSize int    `toml:"max_file_size"`
	} `toml:"fs"`

	HTTP *struct {
		Domains        []string `toml:"domains"`
		AllowLocalhost bool     `toml:"allow_localhost"`
	} `toml:"http"`

	// Dir is the manifest's directory; relative paths resolve against it.
	Dir string `toml:"-"`
}

var ErrNoMainBlob = errors.New("launch: manifest names no main blob")

// LoadManifest reads and validates a bundle manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("launch: manifest %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("launch: manifest %s: unknown key %q", path, undec[0])
	}
	if m.Frozen.Main == "" {
		return nil, ErrNoMainBlob
	}
	if m.App.Name == "" {
		m.App.Name = "nfreeze"
	}
	if m.App.Main == "" {
		m.App.Main = "main.py"
	}
	if m.Runtime.Encoding == "" {
		m.Runtime.Encoding = "wide"
	}
	m.Dir = filepath.Dir(path)
	return &m, nil
}

// encoding maps the manifest's encoding name to an ArgEncoding.
func (m *Manifest) encoding() (ArgEncoding, error) {
	switch m.Runtime.Encoding {
	case "narrow":
		return Narrow{}, nil
	case "wide":
		return Wide{Decoder: LocaleDecoder{}}, nil
	case "wide-escape":
		return Wide{Decoder: EscapeDecoder{}}, nil
	}
	return nil, fmt.Errorf("launch: unknown encoding %q", m.Runtime.Encoding)
}

// blob reads a frozen blob relative to the manifest directory; an
// empty name yields nil, which leaves that slot out of the frozen
// table lookup.
func (m *Manifest) blob(name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}
	return os.ReadFile(filepath.Join(m.Dir, name))
}

// Options turns the manifest into a ready Options value for Start.
// args is the raw process argument vector including the program name.
func (m *Manifest) Options(args []string) (Options, error) {
	enc, err := m.encoding()
	if err != nil {
		return Options{}, err
	}
	bootstrap, err := m.blob(m.Frozen.Bootstrap)
	if err != nil {
		return Options{}, err
	}
	main, err := m.blob(m.Frozen.Main)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Args:        args,
		ProgramName: m.App.Name,
		MainScript:  m.App.Main,
		Bootstrap:   bootstrap,
		Main:        main,
		ExtraPath:   m.Path.Extra,
		Encoding:    enc,
		GasLimit:    m.Runtime.Gas,
	}

	if m.Resources.Root != "" {
		opts.Resources = os.DirFS(filepath.Join(m.Dir, m.Resources.Root))
	}

	// json and strings carry no policy, so every bundle gets them;
	// frozen code still has to import them to bind anything.
	opts.Extensions = append(opts.Extensions, stdlib.JSONModule(), stdlib.StringsModule())

	if m.FS != nil {
		maxSize := m.FS.MaxFileSize
		if maxSize <= 0 {
			maxSize = 1 << 20
		}
		sandbox := stdlib.NewFSSandbox(filepath.Join(m.Dir, m.FS.Root), maxSize)
		opts.Extensions = append(opts.Extensions, sandbox.Module())
	}
	if m.HTTP != nil {
		sandbox := stdlib.NewHTTPSandbox(m.HTTP.Domains)
		sandbox.AllowLocalhost = m.HTTP.AllowLocalhost
		opts.Extensions = append(opts.Extensions, sandbox.Module())
	}

	return opts, nil
}
