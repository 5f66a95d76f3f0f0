// Package inspect serves a read-only view of a container's registrations
// over HTTP. It never resolves anything.
package inspect

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/http/validation"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ServiceInfo describes one registered name.
type ServiceInfo struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	Lifetime   string `json:"lifetime,omitempty"`
	Target     string `json:"target,omitempty"`
}

// Inspector lists the services visible from a container.
type Inspector struct {
	container *container.Container
	log       *zap.Logger
}

// New returns an Inspector over c. A nil log discards everything.
func New(c *container.Container, log *zap.Logger) *Inspector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inspector{container: c, log: log.Named("inspect")}
}

// Routes mounts the inspector on r:
//
//	GET /services         every visible name, filtered by ?lifetime, ?prefix and ?limit
//	GET /services/{name}  one name, 404 when unbound
func (i *Inspector) Routes(r *routing.Router) {
	r.Prefix("/services", func(s *routing.Router) {
		s.Get("/", i.list)
		s.Get("/{name}", i.show)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).NotFound()
	})
}

// Handler returns a router serving only the inspector.
func (i *Inspector) Handler() http.Handler {
	r := routing.New(i.log)
	i.Routes(r)
	return r
}

// Services describes every visible name, sorted.
func (i *Inspector) Services() []ServiceInfo {
	names := i.container.Names()
	out := make([]ServiceInfo, 0, len(names))
	for _, name := range names {
		if info, ok := i.Describe(name); ok {
			out = append(out, info)
		}
	}
	return out
}

// Describe returns the registration of name.
func (i *Inspector) Describe(name string) (ServiceInfo, bool) {
	d, ok := i.container.Lookup(name)
	if !ok {
		return ServiceInfo{}, false
	}
	info := ServiceInfo{Name: name, Descriptor: d.String()}
	switch x := d.(type) {
	case *container.ServiceDescriptor:
		info.Lifetime = x.Lifetime().Type().String()
	case *container.ReferenceDescriptor:
		info.Target = x.Target()
	}
	return info, true
}

// Filter narrows a service listing. Zero fields match everything.
type Filter struct {
	Lifetime string
	Prefix   string
	Limit    int
}

// Match reports whether info passes the lifetime and prefix filters.
func (f Filter) Match(info ServiceInfo) bool {
	if f.Lifetime != "" && info.Lifetime != f.Lifetime {
		return false
	}
	return strings.HasPrefix(info.Name, f.Prefix)
}

// Select returns the services matching f, sorted by name.
func (i *Inspector) Select(f Filter) []ServiceInfo {
	out := make([]ServiceInfo, 0)
	for _, info := range i.Services() {
		if !f.Match(info) {
			continue
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
		out = append(out, info)
	}
	return out
}

var listRules = validation.Rules{
	"lifetime": "sometimes|in:singleton,container,hierarchy,context,call",
	"prefix":   `sometimes|max:128|regex:^[A-Za-z0-9_.:\-]+$`,
	"limit":    "sometimes|integer|gte:1|lte:500",
}

func (i *Inspector) list(w http.ResponseWriter, r *http.Request) {
	req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)

	v := validation.Make(req.All(), listRules)
	if v.Fails() {
		i.log.Debug("invalid service filter", zap.Any("errors", v.Errors().Bag))
		res.ValidationError(v.Errors())
		return
	}

	limit, _ := strconv.Atoi(req.Query("limit", "0"))
	res.Success(i.Select(Filter{
		Lifetime: req.Query("lifetime"),
		Prefix:   req.Query("prefix"),
		Limit:    limit,
	}))
}

func (i *Inspector) show(w http.ResponseWriter, req *http.Request) {
	name := gohttp.NewRequest(req).RouteParam("name")
	info, ok := i.Describe(name)
	if !ok {
		i.log.Debug("unknown service requested", zap.String("service", name))
		gohttp.NewResponse(w).NotFound("service " + name + " is not registered")
		return
	}
	gohttp.NewResponse(w).Success(info)
}
