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

package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Complete drains both channels, refreshes the written indices, and —
// depending on the decided Strategy — runs the server-side reindex
// cleanup or just the alias swap and stale-document prune (spec §4.I
// "On complete"). Draining and refreshing primary and secondary are
// independent operations, so both run concurrently via the same
// errgroup.Group fan-out the channel worker pool uses.
func (o *Orchestrator[T]) Complete(ctx context.Context) error {
	var drain errgroup.Group
	drain.Go(func() error { return o.primary.WaitForDrainAsync(ctx) })
	if o.strategy == Multiplex {
		drain.Go(func() error { return o.secondary.WaitForDrainAsync(ctx) })
	}
	if err := drain.Wait(); err != nil {
		return fmt.Errorf("draining channels: %w", err)
	}

	var refresh errgroup.Group
	refresh.Go(func() error { return o.refresh(ctx, o.cfg.PrimaryPattern) })
	if o.strategy == Multiplex {
		refresh.Go(func() error { return o.refresh(ctx, o.cfg.SecondaryPattern) })
	}
	if err := refresh.Wait(); err != nil {
		return fmt.Errorf("refreshing indices: %w", err)
	}

	if o.strategy == Reindex {
		if err := o.serverSideReindex(ctx); err != nil {
			return fmt.Errorf("server-side reindex: %w", err)
		}
		if err := o.deleteStaleByBatchIndexDate(ctx); err != nil {
			return fmt.Errorf("delete-by-query stale documents: %w", err)
		}
	}

	if err := o.aliases.Swap(ctx, "", o.cfg.SecondaryPattern, o.cfg.SecondarySearchAlias); err != nil {
		return fmt.Errorf("swapping aliases: %w", err)
	}
	if err := o.deleteByQuery(ctx, o.cfg.PrimaryPattern, o.pruneQuery()); err != nil {
		return fmt.Errorf("pruning stale primary documents: %w", err)
	}

	if o.cfg.OnPostComplete != nil {
		if err := o.cfg.OnPostComplete(ctx); err != nil {
			return fmt.Errorf("on_post_complete hook: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator[T]) refresh(ctx context.Context, pattern string) error {
	status, body, err := perform(ctx, o.cfg.Transport, o.cfg.BaseURL, "POST", "/"+pattern+"/_refresh", nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("_refresh returned %d: %s", status, body)
	}
	return nil
}

// serverSideReindex copies documents with
// FieldNames.LastUpdated >= batch_timestamp from the primary pattern
// into the secondary pattern via Elasticsearch's server-side _reindex
// API.
func (o *Orchestrator[T]) serverSideReindex(ctx context.Context) error {
	body := fmt.Sprintf(
		`{"source":{"index":%q,"query":{"range":{%q:{"gte":%q}}}},"dest":{"index":%q}}`,
		o.cfg.PrimaryPattern, o.cfg.FieldNames.LastUpdated, o.batchTimestamp.Format(batchTimestampLayout), o.cfg.SecondaryPattern,
	)
	status, respBody, err := perform(ctx, o.cfg.Transport, o.cfg.BaseURL, "POST", "/_reindex", []byte(body))
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("_reindex returned %d: %s", status, respBody)
	}
	return nil
}

// deleteStaleByBatchIndexDate deletes documents indexed in the
// secondary pattern before the orchestrator's stable batch_timestamp —
// documents that were already multiplexed prior to the switch to
// reindex mode and are now duplicated by serverSideReindex.
func (o *Orchestrator[T]) deleteStaleByBatchIndexDate(ctx context.Context) error {
	query := fmt.Sprintf(`{"range":{%q:{"lt":%q}}}`, o.cfg.FieldNames.BatchIndexDate, o.batchTimestamp.Format(batchTimestampLayout))
	return o.deleteByQuery(ctx, o.cfg.SecondaryPattern, query)
}

func (o *Orchestrator[T]) pruneQuery() string {
	return fmt.Sprintf(`{"range":{%q:{"lt":%q}}}`, o.cfg.FieldNames.BatchIndexDate, o.batchTimestamp.Format(batchTimestampLayout))
}

func (o *Orchestrator[T]) deleteByQuery(ctx context.Context, pattern, query string) error {
	body := fmt.Sprintf(`{"query":%s}`, query)
	status, respBody, err := perform(ctx, o.cfg.Transport, o.cfg.BaseURL, "POST", "/"+pattern+"/_delete_by_query", []byte(body))
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("_delete_by_query returned %d: %s", status, respBody)
	}
	return nil
}

const batchTimestampLayout = "2006-01-02T15:04:05.000Z"
