package battle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.battle(t, 5)

	got, invs, err := f.svc.Invite(ctx, InviteParams{BattleID: b.ID, PlayerIDs: []int64{3, 4}, TeamName: "Crimson"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	require.Len(t, invs, 2)
	assert.Equal(t, InvitationPending, invs[0].Status)
	assert.Equal(t, DefaultFactionColor, invs[0].FactionColor)

	// Re-inviting skips players who already hold an invitation.
	_, invs, err = f.svc.Invite(ctx, InviteParams{BattleID: b.ID, PlayerIDs: []int64{4, 5}, TeamName: "Azure", FactionColor: "#0000ff"})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, int64(5), invs[0].PlayerID)
	assert.Equal(t, "#0000ff", invs[0].FactionColor)

	all, err := f.svc.BattleInvitations(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInvite_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.battle(t, 5)

	tests := []struct {
		name    string
		params  InviteParams
		wantErr error
	}{
		{"no players", InviteParams{BattleID: b.ID, TeamName: "Crimson"}, ErrInvalidArgument},
		{"no team", InviteParams{BattleID: b.ID, PlayerIDs: []int64{3}}, ErrInvalidArgument},
		{"unknown battle", InviteParams{BattleID: 999, PlayerIDs: []int64{3}, TeamName: "Crimson"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Invite(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.svc.BattleInvitations(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerInvitations_PendingInCampaignOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.battle(t, 5)
	other, err := f.svc.Create(ctx, CreateParams{CampaignID: 2, Name: "Elsewhere"})
	require.NoError(t, err)

	_, mine, err := f.svc.Invite(ctx, InviteParams{BattleID: b.ID, PlayerIDs: []int64{3}, TeamName: "Crimson"})
	require.NoError(t, err)
	_, _, err = f.svc.Invite(ctx, InviteParams{BattleID: other.ID, PlayerIDs: []int64{3}, TeamName: "Crimson"})
	require.NoError(t, err)

	got, err := f.svc.PlayerInvitations(ctx, 3, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine[0].ID, got[0].ID)
	assert.Equal(t, "Ford of Ashes", got[0].BattleName)

	_, _, err = f.svc.DeclineInvitation(ctx, mine[0].ID)
	require.NoError(t, err)
	got, err = f.svc.PlayerInvitations(ctx, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAcceptInvitation_AddsOneParticipantPerArmy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.battle(t, 5)
	_, invs, err := f.svc.Invite(ctx, InviteParams{BattleID: b.ID, PlayerIDs: []int64{3}, TeamName: "Crimson", FactionColor: "#aa0000"})
	require.NoError(t, err)

	acc, err := f.svc.AcceptInvitation(ctx, invs[0].ID, []int64{20, 21})
	require.NoError(t, err)
	assert.Equal(t, InvitationAccepted, acc.Invitation.Status)
	assert.Equal(t, int64(1), acc.CampaignID)
	require.Len(t, acc.Participants, 2)
	for i, p := range acc.Participants {
		assert.Equal(t, "Crimson", p.TeamName)
		assert.Equal(t, "#aa0000", p.FactionColor)
		assert.False(t, p.IsTemporary)
		require.NotNil(t, p.ArmyID)
		assert.Equal(t, []int64{20, 21}[i], *p.ArmyID)
	}

	ps, err := f.store.ListParticipants(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 2)

	// Answered invitations cannot be answered again.
	_, err = f.svc.AcceptInvitation(ctx, invs[0].ID, []int64{22})
	assert.ErrorIs(t, err, ErrConflict)
	_, _, err = f.svc.DeclineInvitation(ctx, invs[0].ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAcceptInvitation_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.battle(t, 5)
	_, invs, err := f.svc.Invite(ctx, InviteParams{BattleID: b.ID, PlayerIDs: []int64{3}, TeamName: "Crimson"})
	require.NoError(t, err)

	_, err = f.svc.AcceptInvitation(ctx, invs[0].ID, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.AcceptInvitation(ctx, 999, []int64{20})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.svc.DeclineInvitation(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeclineInvitation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.battle(t, 5)
	_, invs, err := f.svc.Invite(ctx, InviteParams{BattleID: b.ID, PlayerIDs: []int64{3}, TeamName: "Crimson"})
	require.NoError(t, err)

	inv, got, err := f.svc.DeclineInvitation(ctx, invs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, InvitationDeclined, inv.Status)
	assert.Equal(t, b.ID, got.ID)

	ps, err := f.store.ListParticipants(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, ps)
}
