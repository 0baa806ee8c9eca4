package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	internalhttp "github.com/keyshield/keyshield/internal/http"
	"github.com/keyshield/keyshield/internal/relay"
	log "github.com/sirupsen/logrus"
)

var proxyDocsTemplate = template.Must(template.New("proxy-docs").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Name}} proxy</title>
<style>
body{font-family:system-ui,sans-serif;max-width:720px;margin:2rem auto;padding:0 1rem;color:#1f2933}
pre{background:#f4f5f7;padding:1rem;border-radius:6px;overflow-x:auto}
code{font-family:ui-monospace,monospace}
</style>
</head>
<body>
<h1>{{.Name}}</h1>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<p>Provider: <code>{{.APIType}}</code></p>
<h2>Usage</h2>
<p>Send a <code>{{.Method}}</code> request with a JSON body to:</p>
<pre><code>{{.ProxyURL}}</code></pre>
<h2>Example</h2>
<pre><code>curl -X {{.Method}} {{.ProxyURL}} \
  -H "Content-Type: application/json" \
  -d '{{printf "%s" .ExampleRequest}}'</code></pre>
<p>The provider response is returned unchanged. The upstream API key stays on the server.</p>
{{if .AllowedOrigins}}<h2>Allowed origins</h2>
<ul>{{range .AllowedOrigins}}<li><code>{{.}}</code></li>{{end}}</ul>{{end}}
</body>
</html>
`))

// ProxyHandler serves the public proxy routes.
type ProxyHandler struct {
	svc *relay.Service
}

// NewProxyHandler constructs a ProxyHandler.
func NewProxyHandler(svc *relay.Service) *ProxyHandler {
	return &ProxyHandler{svc: svc}
}

// Invoke relays the request prompt and returns the upstream body verbatim.
func (h *ProxyHandler) Invoke(c *gin.Context) {
	raw, prompt, ok := readPromptBody(c)
	if !ok {
		return
	}
	origin := c.GetHeader("Origin")
	body, err := h.svc.Proxy(c.Request.Context(), relay.ProxyRequest{
		ProxyID: c.Param("proxyId"),
		Prompt:  prompt,
		RawBody: raw,
		Origin:  origin,
	})
	if origin != "" && !errors.Is(err, relay.ErrOriginNotAllowed) && !errors.Is(err, relay.ErrNotFound) {
		internalhttp.SetCORSHeaders(c, origin)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Preflight answers CORS preflight requests with the endpoint's origin list.
func (h *ProxyHandler) Preflight(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if err := h.svc.CheckOrigin(c.Request.Context(), c.Param("proxyId"), origin); err != nil {
		writeError(c, err)
		return
	}
	if origin != "" {
		internalhttp.SetCORSHeaders(c, origin)
	}
	c.Status(http.StatusNoContent)
}

// Docs describes how to call the proxy URL, as HTML or JSON depending on Accept.
func (h *ProxyHandler) Docs(c *gin.Context) {
	docs, err := h.svc.ProxyDocs(c.Request.Context(), c.Param("proxyId"))
	if err != nil {
		writeError(c, err)
		return
	}

	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) {
	case gin.MIMEHTML:
		var buf bytes.Buffer
		if errRender := proxyDocsTemplate.Execute(&buf, docs); errRender != nil {
			log.WithError(errRender).Error("render proxy docs failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	default:
		c.JSON(http.StatusOK, docs)
	}
}
