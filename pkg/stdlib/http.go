package stdlib

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/runtime"
	"github.com/agenthands/nfreeze/pkg/vm"
)

var (
	ErrDomainNotAllowed = errors.New("stdlib/http: domain not allowed")
	ErrLocalhostBlocked = errors.New("stdlib/http: localhost/internal access blocked")
)

const sysFetch = runtime.HostBase + 8

// HTTPBuiltins is merged into the compiler when freezing code that
// uses the http module.
var HTTPBuiltins = map[string]uint32{
	"fetch": sysFetch,
}

// HTTPSandbox restricts outbound requests to an allowlist.
type HTTPSandbox struct {
	AllowedDomains []string
	AllowLocalhost bool
	Client         *http.Client
}

func NewHTTPSandbox(allowedDomains []string) *HTTPSandbox {
	return &HTTPSandbox{
		AllowedDomains: allowedDomains,
		Client:         http.DefaultClient,
	}
}

// Module returns the inittab entry for the http extension.
func (s *HTTPSandbox) Module() runtime.ExtensionModule {
	return runtime.ExtensionModule{
		Name: "http",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			if err := i.BindHost(sysFetch, s.Fetch); err != nil {
				return nil, err
			}
			return &runtime.Module{
				Name:  "http",
				Attrs: map[string]string{"allowed": strings.Join(s.AllowedDomains, ",")},
			}, nil
		},
	}
}

// Fetch: ( url -- content )
func (s *HTTPSandbox) Fetch(m *vm.Machine) error {
	urlStr := value.UnpackString(m.Pop().Data, m.Arena)

	u, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	if !s.isAllowed(u.Hostname()) {
		return ErrDomainNotAllowed
	}
	if !s.AllowLocalhost && isLocalhost(u.Hostname()) {
		return ErrLocalhostBlocked
	}

	resp, err := s.Client.Get(urlStr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
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

func (s *HTTPSandbox) isAllowed(hostname string) bool {
	for _, domain := range s.AllowedDomains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return true
		}
	}
	return false
}

func isLocalhost(hostname string) bool {
	h := strings.ToLower(hostname)
	return h == "localhost" || h == "127.0.0.1" || h == "::1" ||
		strings.HasPrefix(h, "192.168.") || strings.HasPrefix(h, "10.")
}
