// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Counter is a prometheus counter that can also report what it holds.
type Counter interface {
	prometheus.Counter
	AddUint64(v uint64)
	GetValueUint64() uint64
}

type counter struct {
	prometheus.Counter
}

// AddUint64 is exact up to 2^53.
func (c *counter) AddUint64(v uint64) {
	c.Add(float64(v))
}

func (c *counter) GetValueUint64() uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		panic(fmt.Errorf("reading counter: %w", err))
	}
	return uint64(m.GetCounter().GetValue())
}

// GetOrCreateCounter returns the counter registered under name, creating it
// on first use. name may carry constant labels, e.g.
// exec_txs_executed{mode="parallel"}. All series of one metric must be
// created with the same help text.
func GetOrCreateCounter(name, help string) Counter {
	c, err := defaultSet.GetOrCreateCounter(name, help)
	if err != nil {
		panic(fmt.Errorf("could not get or create new counter: %w", err))
	}
	return &counter{c}
}
