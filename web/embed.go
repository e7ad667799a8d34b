package web

import "embed"

// Templates embeds HTML templates.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static embeds static assets.
//
//go:embed static/**/*
var Static embed.FS

// Content embeds editorial copy rendered by the landing page.
//
//go:embed content/*.yaml
var Content embed.FS
