package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/shuffle"
)

func newStore(t *testing.T) *persistence.GormStore {
	store, err := persistence.NewMemoryStore(strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCatalog_EnsureMinimumCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(newStore(t))

	created, err := catalog.EnsureMinimumCatalog(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = catalog.EnsureMinimumCatalog(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	roles, err := catalog.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, models.SideInvestigator, roles[0].Side())
	assert.Equal(t, models.SideEvader, roles[1].Side())
	assert.Equal(t, models.SideNeutral, roles[2].Side())
}

func TestCatalog_EnsureMinimumCatalogConcurrent(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(newStore(t))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			catalog.EnsureMinimumCatalog(ctx)
		}()
	}
	wg.Wait()

	roles, err := catalog.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)
}

func TestCatalog_SeedDefaultCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(newStore(t))
	_, err := catalog.EnsureMinimumCatalog(ctx)
	require.NoError(t, err)

	seeded, err := catalog.SeedDefaultCatalog(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = catalog.SeedDefaultCatalog(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	roles, err := catalog.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 12)

	investigators, evaders := 0, 0
	for _, r := range roles {
		switch r.Side() {
		case models.SideInvestigator:
			investigators++
		case models.SideEvader:
			evaders++
		}
	}
	assert.Equal(t, 1, investigators)
	assert.Equal(t, 1, evaders)
}

func TestCatalog_UpdateRole(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(newStore(t))
	_, err := catalog.EnsureMinimumCatalog(ctx)
	require.NoError(t, err)
	roles, err := catalog.ListRoles(ctx)
	require.NoError(t, err)

	name, points := "Detective", 300
	updated, err := catalog.UpdateRole(ctx, roles[0].ID, RoleUpdate{Name: &name, WinPoints: &points})
	require.NoError(t, err)
	assert.Equal(t, "Detective", updated.Name)
	assert.Equal(t, 300, updated.WinPoints)
	assert.True(t, updated.IsInvestigator)
	assert.Equal(t, roles[0].Description, updated.Description)

	empty := ""
	_, err = catalog.UpdateRole(ctx, roles[0].ID, RoleUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidRole)

	negative := -1
	_, err = catalog.UpdateRole(ctx, roles[0].ID, RoleUpdate{WinPoints: &negative})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = catalog.UpdateRole(ctx, 9999, RoleUpdate{WinPoints: &points})
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)
}

func TestRoomService_CreateAndJoin(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomService(newStore(t), RoomDefaults{MaxRounds: 3, TimerSeconds: 45})

	room, host, err := rooms.CreateRoom(ctx, "  Alice ")
	require.NoError(t, err)
	assert.Len(t, room.Code, roomCodeLength)
	assert.Equal(t, strings.ToUpper(room.Code), room.Code)
	assert.Equal(t, 3, room.MaxRounds)
	assert.Equal(t, 45, room.TimerSeconds)
	assert.Equal(t, models.RoomWaiting, room.Status)
	assert.Equal(t, "Alice", host.Name)
	assert.True(t, host.IsHost)
	assert.Equal(t, host.SessionID, room.HostSessionID)

	bob, err := rooms.JoinRoom(ctx, strings.ToLower(room.Code), "Bob", "")
	require.NoError(t, err)
	assert.NotEmpty(t, bob.SessionID)
	assert.False(t, bob.IsHost)

	again, err := rooms.JoinRoom(ctx, room.Code, "Robert", bob.SessionID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, again.ID)
	assert.Equal(t, "Bob", again.Name)

	dup, err := rooms.JoinRoom(ctx, room.Code, "Bob", "")
	require.NoError(t, err)
	assert.Regexp(t, `^Bob #\d{4}$`, dup.Name)

	_, err = rooms.JoinRoom(ctx, "NOPE00", "Carol", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = rooms.JoinRoom(ctx, room.Code, " ", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	player, err := rooms.Player(ctx, room.ID, bob.SessionID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, player.ID)
	_, err = rooms.Player(ctx, room.ID, "unknown")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestRoomService_JoinCap(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomService(newStore(t), RoomDefaults{})

	room, _, err := rooms.CreateRoom(ctx, "P0")
	require.NoError(t, err)
	for i := 1; i < shuffle.MaxPlayers; i++ {
		_, err := rooms.JoinRoom(ctx, room.Code, "P"+strings.Repeat("x", i), "")
		require.NoError(t, err)
	}
	_, err = rooms.JoinRoom(ctx, room.Code, "Late", "")
	assert.ErrorIs(t, err, ErrRoomFull)

	count, err := rooms.CountPlayers(ctx, room.ID)
	require.NoError(t, err)
	assert.EqualValues(t, shuffle.MaxPlayers, count)
}

func TestRoomService_RemovePlayerPromotesHost(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomService(newStore(t), RoomDefaults{})

	room, host, err := rooms.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	bob, err := rooms.JoinRoom(ctx, room.Code, "Bob", "")
	require.NoError(t, err)
	carol, err := rooms.JoinRoom(ctx, room.Code, "Carol", "")
	require.NoError(t, err)

	removed, newHost, err := rooms.RemovePlayer(ctx, room.ID, carol.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", removed.Name)
	assert.Nil(t, newHost)

	removed, newHost, err = rooms.RemovePlayer(ctx, room.ID, host.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", removed.Name)
	require.NotNil(t, newHost)
	assert.Equal(t, bob.ID, newHost.ID)
	assert.True(t, newHost.IsHost)

	roster, err := rooms.Roster(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.True(t, roster[0].IsHost)

	updated, err := rooms.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, bob.SessionID, updated.HostSessionID)

	_, _, err = rooms.RemovePlayer(ctx, room.ID, carol.SessionID)
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)
}

func TestRoomService_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	rooms := NewRoomService(store, RoomDefaults{})
	catalog := NewCatalogService(store)
	_, err := catalog.EnsureMinimumCatalog(ctx)
	require.NoError(t, err)
	roles, err := catalog.ListRoles(ctx)
	require.NoError(t, err)

	room, _, err := rooms.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 5, room.MaxRounds)
	assert.Equal(t, 60, room.TimerSeconds)

	name, points := "Detective", 250
	require.NoError(t, rooms.UpdateSettings(ctx, room.ID, 8, []RoleEdit{
		{ID: roles[0].ID, Update: RoleUpdate{Name: &name, WinPoints: &points}},
	}))
	updated, err := rooms.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.MaxRounds)
	role, err := store.GetRole(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Detective", role.Name)

	assert.ErrorIs(t, rooms.UpdateSettings(ctx, room.ID, 0, nil), ErrInvalidSettings)
	_, err = rooms.GetRoomByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_UpdateSettingsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	rooms := NewRoomService(store, RoomDefaults{MaxRounds: 3})
	catalog := NewCatalogService(store)
	_, err := catalog.EnsureMinimumCatalog(ctx)
	require.NoError(t, err)
	roles, err := catalog.ListRoles(ctx)
	require.NoError(t, err)
	room, _, err := rooms.CreateRoom(ctx, "Alice")
	require.NoError(t, err)

	points := 5
	err = rooms.UpdateSettings(ctx, room.ID, 9, []RoleEdit{
		{ID: roles[1].ID, Update: RoleUpdate{WinPoints: &points}},
		{ID: 9999, Update: RoleUpdate{WinPoints: &points}},
	})
	assert.ErrorIs(t, err, persistence.ErrRecordNotFound)

	unchanged, err := rooms.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, unchanged.MaxRounds)
	role, err := store.GetRole(ctx, roles[1].ID)
	require.NoError(t, err)
	assert.Equal(t, roles[1].WinPoints, role.WinPoints)

	negative := -1
	err = rooms.UpdateSettings(ctx, room.ID, 9, []RoleEdit{{ID: roles[1].ID, Update: RoleUpdate{WinPoints: &negative}}})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoomService_SetAvatar(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomService(newStore(t), RoomDefaults{})
	room, host, err := rooms.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAvatar, host.Avatar)

	require.NoError(t, rooms.SetAvatar(ctx, host.ID, "fox.png"))
	player, err := rooms.Player(ctx, room.ID, host.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "fox.png", player.Avatar)

	assert.ErrorIs(t, rooms.SetAvatar(ctx, host.ID, "  "), ErrInvalidAvatar)
	assert.ErrorIs(t, rooms.SetAvatar(ctx, host.ID, strings.Repeat("a", maxAvatarLength+1)), ErrInvalidAvatar)
	assert.ErrorIs(t, rooms.SetAvatar(ctx, 9999, "fox.png"), ErrPlayerNotFound)
}

func TestJanitor_Sweep(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	rooms := NewRoomService(store, RoomDefaults{})

	stale, _, err := rooms.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	live, _, err := rooms.CreateRoom(ctx, "Bob")
	require.NoError(t, err)

	janitor := NewJanitor(store, "@hourly", time.Hour, func(code string) bool { return code == live.Code })

	deleted, err := janitor.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = janitor.Sweep(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = rooms.GetRoom(ctx, stale.Code)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = rooms.GetRoom(ctx, live.Code)
	assert.NoError(t, err)

	require.NoError(t, janitor.Start())
	janitor.Stop()
}
