package main

import (
	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
	"github.com/stellarlinkco/ab-eval/internal/llm"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

var (
	loadConfig                = config.Load
	loadCatalog               = catalog.Load
	openStore                 = store.Open
	defaultProviderFromConfig = llm.DefaultProviderFromConfig
)
