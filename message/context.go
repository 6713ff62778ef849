package message

import "maps"

// SizeUnknown marks a payload whose length is not known up front.
const SizeUnknown int64 = -1

// Well-known MIME types.
const (
	MimeTextPlain   = "text/plain"
	MimeTextXML     = "text/xml"
	MimeOctetStream = "application/octet-stream"
)

// Context carries the metadata that travels with a payload.
type Context struct {
	Charset  string
	MimeType string
	Size     int64
	Headers  map[string]string
}

// Header returns a header value, or "" when absent.
func (c Context) Header(name string) string {
	if c.Headers == nil {
		return ""
	}
	return c.Headers[name]
}

func (c Context) clone() Context {
	out := c
	if c.Headers != nil {
		out.Headers = maps.Clone(c.Headers)
	}
	return out
}

// Option configures the Context of a new Message.
type Option func(*Context)

// WithCharset sets the character set used to decode binary payloads.
func WithCharset(charset string) Option {
	return func(c *Context) { c.Charset = charset }
}

// WithMimeType sets the MIME type.
func WithMimeType(mime string) Option {
	return func(c *Context) { c.MimeType = mime }
}

// WithSize declares the payload length in bytes.
func WithSize(n int64) Option {
	return func(c *Context) { c.Size = n }
}

// WithHeader adds a free-form header.
func WithHeader(name, value string) Option {
	return func(c *Context) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[name] = value
	}
}

// WithContext copies every field of ctx.
func WithContext(ctx Context) Option {
	return func(c *Context) { *c = ctx.clone() }
}

func newContext(opts []Option) Context {
	c := Context{Size: SizeUnknown}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
