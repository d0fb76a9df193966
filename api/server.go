package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
	"github.com/stellarlinkco/ab-eval/internal/dispatch"
	"github.com/stellarlinkco/ab-eval/internal/sampling"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

type Server struct {
	router     *gin.Engine
	store      store.Store
	catalog    *catalog.Catalog
	config     *config.Config
	dispatcher *dispatch.Dispatcher
	sampler    *sampling.Sampler
}

func NewServer(cfg *config.Config, cat *catalog.Catalog, st store.Store, d *dispatch.Dispatcher, sampler *sampling.Sampler) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	if cat == nil {
		return nil, errors.New("api: nil catalog")
	}
	if st == nil {
		return nil, errors.New("api: nil store")
	}
	if d == nil {
		return nil, errors.New("api: nil dispatcher")
	}
	if sampler == nil {
		return nil, errors.New("api: nil sampler")
	}

	r := gin.New()
	s := &Server{
		router:     r,
		store:      st,
		catalog:    cat,
		config:     cfg,
		dispatcher: d,
		sampler:    sampler,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
