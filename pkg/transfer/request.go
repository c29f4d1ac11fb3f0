package transfer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/twrkit/pkg/oauth"
)

// ErrInvalidRequest is returned synchronously for malformed descriptors.
var ErrInvalidRequest = errors.New("invalid request")

// Param is either a TextParam or a FileParam.
type Param interface {
	ParamName() string
	isParam()
}

// TextParam is a plain name/value parameter.
type TextParam struct {
	Name  string
	Value string
}

// FileParam attaches the file at Path as a multipart field called Name.
type FileParam struct {
	Name string
	Path string
}

func (p TextParam) ParamName() string { return p.Name }
func (p FileParam) ParamName() string { return p.Name }

func (TextParam) isParam() {}
func (FileParam) isParam() {}

// Text returns a TextParam.
func Text(name, value string) Param {
	return TextParam{Name: name, Value: value}
}

// File returns a FileParam.
func File(name, path string) Param {
	return FileParam{Name: name, Path: path}
}

// Request describes one transfer. It is not modified after construction.
type Request struct {
	Method string
	URL    string
	Params []Param
}

// Get builds a GET request whose params travel in the query string.
func Get(rawURL string, params ...Param) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL, Params: params}
}

// Post builds a POST request whose params travel as a multipart body.
func Post(rawURL string, params ...Param) *Request {
	return &Request{Method: http.MethodPost, URL: rawURL, Params: params}
}

// Validate checks method, URL and the file attachment rules.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, r.Method)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}

	files := 0
	for i, p := range r.Params {
		if p == nil {
			return fmt.Errorf("%w: param[%d] is nil", ErrInvalidRequest, i)
		}
		if p.ParamName() == "" {
			return fmt.Errorf("%w: param[%d] has no name", ErrInvalidRequest, i)
		}
		if f, ok := p.(FileParam); ok {
			if f.Path == "" {
				return fmt.Errorf("%w: file param %q has no path", ErrInvalidRequest, f.Name)
			}
			files++
		}
	}
	if files > 0 && r.Method != http.MethodPost {
		return fmt.Errorf("%w: file attachments require POST", ErrInvalidRequest)
	}
	if files > 1 {
		return fmt.Errorf("%w: at most one file attachment is allowed", ErrInvalidRequest)
	}
	return nil
}

// TextParams returns the text parameters as signature pairs.
func (r *Request) TextParams() []oauth.Param {
	out := make([]oauth.Param, 0, len(r.Params))
	for _, p := range r.Params {
		if t, ok := p.(TextParam); ok {
			out = append(out, oauth.Param{Key: t.Name, Value: t.Value})
		}
	}
	return out
}

// Query percent-encodes the text parameters in the order given.
func (r *Request) Query() string {
	pairs := make([]string, 0, len(r.Params))
	for _, p := range r.TextParams() {
		pairs = append(pairs, oauth.PercentEncode(p.Key)+"="+oauth.PercentEncode(p.Value))
	}
	return strings.Join(pairs, "&")
}

// EncodedURL returns the URL a GET request is sent to.
func (r *Request) EncodedURL() string {
	q := r.Query()
	if q == "" {
		return r.URL
	}
	if strings.Contains(r.URL, "?") {
		return r.URL + "&" + q
	}
	return r.URL + "?" + q
}
