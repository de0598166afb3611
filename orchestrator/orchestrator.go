// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package orchestrator coordinates two channels (primary, secondary)
// sharing a document type for incremental sync, deciding between
// multiplex and reindex strategies and driving drain, alias swap, and
// server-side reindex/delete-by-query cleanup (spec §4.I).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/elastic/go-ingest-channel/alias"
	"github.com/elastic/go-ingest-channel/bootstrap"
	"github.com/elastic/go-ingest-channel/channel"
	"github.com/elastic/go-ingest-channel/estransport"
	"github.com/elastic/go-ingest-channel/internal/logs"
)

// Strategy is the decided sync mode for an Orchestrator run.
type Strategy int

const (
	// Multiplex writes every document to both primary and secondary.
	Multiplex Strategy = iota
	// Reindex writes only to primary; secondary is brought up to date
	// via a server-side _reindex at Complete.
	Reindex
)

func (s Strategy) String() string {
	if s == Reindex {
		return "reindex"
	}
	return "multiplex"
}

// FieldNames configures the document fields the reindex-mode
// server-side script and delete-by-query reference. Spec §9 Open
// Questions: "treat these as first-class configuration inputs, not
// constants."
type FieldNames struct {
	LastUpdated    string
	BatchIndexDate string
}

func (f FieldNames) withDefaults() FieldNames {
	if f.LastUpdated == "" {
		f.LastUpdated = "last_updated"
	}
	if f.BatchIndexDate == "" {
		f.BatchIndexDate = "batch_index_date"
	}
	return f
}

// Config configures an Orchestrator.
type Config[T any] struct {
	Transport estransport.Interface
	BaseURL   string

	PrimaryBootstrap   *bootstrap.Context
	SecondaryBootstrap *bootstrap.Context
	BootstrapPolicy    bootstrap.Policy

	PrimaryPattern       string
	PrimarySearchAlias   string
	SecondaryPattern     string
	SecondarySearchAlias string

	FieldNames FieldNames

	// PreBootstrapTasks run, in insertion order, before Primary is
	// bootstrapped.
	PreBootstrapTasks []func(ctx context.Context) error
	// OnPostComplete runs after Complete finishes its own work.
	OnPostComplete func(ctx context.Context) error
}

// Orchestrator manages primary and secondary channels for an
// incremental sync run.
type Orchestrator[T any] struct {
	cfg       Config[T]
	primary   *channel.Channel[T]
	secondary *channel.Channel[T]
	sequencer *bootstrap.Sequencer
	aliases   *alias.Manager
	logger    *logs.Limiter

	strategy      Strategy
	batchTimestamp time.Time
}

// New constructs an Orchestrator. primary and secondary must already
// be running channel.Channel instances (their construction, including
// Exporter wiring, is the caller's concern); New only coordinates
// bootstrap, routing decisions, and completion.
func New[T any](logger *zap.SugaredLogger, primary, secondary *channel.Channel[T], cfg Config[T]) *Orchestrator[T] {
	cfg.FieldNames = cfg.FieldNames.withDefaults()
	return &Orchestrator[T]{
		cfg:            cfg,
		primary:        primary,
		secondary:      secondary,
		sequencer:      bootstrap.NewSequencer(logger, cfg.BootstrapPolicy),
		aliases:        alias.New(cfg.Transport, cfg.BaseURL),
		logger:         logs.RateLimited(logger, time.Minute),
		batchTimestamp: time.Now(),
	}
}

// Strategy reports the sync strategy decided by Start.
func (o *Orchestrator[T]) Strategy() Strategy { return o.strategy }

// Start runs pre-bootstrap tasks, bootstraps primary, and decides the
// sync strategy (spec §4.I "On start").
func (o *Orchestrator[T]) Start(ctx context.Context) error {
	var merr *multierror.Error
	for _, task := range o.cfg.PreBootstrapTasks {
		if err := task(ctx); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return fmt.Errorf("pre-bootstrap tasks failed: %w", err)
	}

	preFingerprint := o.cfg.PrimaryBootstrap.ChannelFingerprint
	ok, err := o.sequencer.Run(ctx, o.cfg.PrimaryBootstrap)
	if err != nil {
		return fmt.Errorf("bootstrapping primary: %w", err)
	}
	if !ok {
		return fmt.Errorf("bootstrapping primary failed under policy %s", o.cfg.BootstrapPolicy)
	}

	o.strategy = o.decideStrategy(ctx, preFingerprint)
	o.logger.Warnw("sync strategy decided", "strategy", o.strategy.String())
	return nil
}

// decideStrategy implements spec §4.I step 3.
func (o *Orchestrator[T]) decideStrategy(ctx context.Context, preFingerprint string) Strategy {
	if preFingerprint != "" && preFingerprint != o.cfg.PrimaryBootstrap.ChannelFingerprint {
		return Multiplex
	}

	if !o.searchAliasExists(ctx, o.cfg.SecondaryPattern, o.cfg.SecondarySearchAlias) {
		return Multiplex
	}

	if o.cfg.SecondaryBootstrap == nil {
		return Multiplex
	}
	secondaryPreFingerprint := o.cfg.SecondaryBootstrap.ChannelFingerprint
	ok, err := o.sequencer.Run(ctx, o.cfg.SecondaryBootstrap)
	if err != nil || !ok {
		return Multiplex
	}
	if secondaryPreFingerprint != "" && secondaryPreFingerprint != o.cfg.SecondaryBootstrap.ChannelFingerprint {
		return Multiplex
	}
	return Reindex
}

func (o *Orchestrator[T]) searchAliasExists(ctx context.Context, pattern, aliasName string) bool {
	if pattern == "" || aliasName == "" {
		return false
	}
	status, _, err := perform(ctx, o.cfg.Transport, o.cfg.BaseURL, "GET", "/"+pattern+"/_alias/"+aliasName, nil)
	return err == nil && status == 200
}

// Write routes a document according to the decided strategy: reindex
// mode writes only to primary, multiplex mode writes to both (spec
// §4.I "On each document write").
func (o *Orchestrator[T]) Write(doc T) {
	o.primary.TryWrite(doc)
	if o.strategy == Multiplex {
		o.secondary.TryWrite(doc)
	}
}

func perform(ctx context.Context, t estransport.Interface, baseURL, method, path string, body []byte) (int, []byte, error) {
	req, err := estransport.NewHTTPRequest(ctx, baseURL, estransport.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return 0, nil, err
	}
	return estransport.Do(t, req)
}
