/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package interview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry([]string{"Q1", "Q2"}, "Bye")

	def := registry.Default()
	require.NotNil(t, def)
	assert.Equal(t, DefaultSessionID, def.ID())
	assert.Equal(t, 1, registry.Len())

	got, err := registry.Get("")
	require.NoError(t, err)
	assert.Same(t, def, got)

	created, err := registry.Create()
	require.NoError(t, err)
	assert.NotEqual(t, DefaultSessionID, created.ID())
	assert.Equal(t, 2, created.Len())
	assert.Equal(t, 2, registry.Len())

	got, err = registry.Get(created.ID())
	require.NoError(t, err)
	assert.Same(t, created, got)

	_, err = registry.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	registry := NewRegistry([]string{"Q1", "Q2"}, "")
	a, err := registry.Create()
	require.NoError(t, err)
	b, err := registry.Create()
	require.NoError(t, err)

	assert.Equal(t, "Q1", a.Next().Text)
	assert.Equal(t, "Q2", a.Next().Text)
	assert.Equal(t, "Q1", b.Next().Text)
	assert.Equal(t, "Q1", registry.Default().Next().Text)
}

func TestRegistry_MaxSessions(t *testing.T) {
	registry := NewRegistry([]string{"Q1"}, "", WithMaxSessions(3))

	for i := 0; i < 2; i++ {
		_, err := registry.Create()
		require.NoError(t, err)
	}

	_, err := registry.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 3, registry.Len(), "the default session counts towards the cap")
}

func TestRegistry_EvictIdleSessions(t *testing.T) {
	registry := NewRegistry([]string{"Q1", "Q2"}, "", WithMaxSessions(2))

	idle, err := registry.Create()
	require.NoError(t, err)

	// Nothing has been idle for an hour yet
	assert.Equal(t, 0, registry.Evict(time.Hour, time.Now()))

	later := idle.LastActive().Add(2 * time.Hour)
	assert.Equal(t, 1, registry.Evict(time.Hour, later))
	assert.Equal(t, 1, registry.Len())

	_, err = registry.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = registry.Get(DefaultSessionID)
	assert.NoError(t, err, "the default session survives eviction")

	// Eviction frees room under the cap
	_, err = registry.Create()
	assert.NoError(t, err)
}

func TestRegistry_ActiveSessionIsKept(t *testing.T) {
	registry := NewRegistry([]string{"Q1", "Q2"}, "")

	session, err := registry.Create()
	require.NoError(t, err)
	created := session.LastActive()

	time.Sleep(5 * time.Millisecond)
	session.Next()
	require.True(t, session.LastActive().After(created))

	assert.Equal(t, 0, registry.Evict(time.Millisecond, session.LastActive()))
	assert.Equal(t, 2, registry.Len())
}
