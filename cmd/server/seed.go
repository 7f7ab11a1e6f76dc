package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"clinic-booking-api/internal/model"
)

type catalog struct {
	Options []model.AppointmentOption `yaml:"options"`
}

type optionUpserter interface {
	UpsertOption(ctx context.Context, o *model.AppointmentOption) error
}

func loadCatalog(path string) ([]model.AppointmentOption, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	seen := make(map[string]bool, len(c.Options))
	for i, o := range c.Options {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("catalog lists %q twice", name)
		}
		seen[name] = true
		c.Options[i].Name = name
	}
	return c.Options, nil
}

func seedCatalog(ctx context.Context, u optionUpserter, path string) (int, error) {
	opts, err := loadCatalog(path)
	if err != nil {
		return 0, err
	}
	for i := range opts {
		if err := u.UpsertOption(ctx, &opts[i]); err != nil {
			return i, fmt.Errorf("upsert %s: %w", opts[i].Name, err)
		}
	}
	return len(opts), nil
}
