package service

import (
	"context"
	"math"
	"strings"
	"testing"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.community(t, model.KindSociety, "chess")
	text := f.channel(t, c.ID, "general", model.PrivacyPublic, model.ChannelText)
	qa := f.channel(t, c.ID, "q-and-a", model.PrivacyPublic, model.ChannelQA)

	_, err := f.threads.CreateThread(ctx, text, 1, "opening theory?")
	assert.ErrorIs(t, err, pkg.ErrValidation)
	_, err = f.threads.CreateThread(ctx, qa, 1, "   ")
	assert.ErrorIs(t, err, pkg.ErrValidation)
	_, err = f.threads.CreateThread(ctx, qa, 1, strings.Repeat("x", MaxThreadTitleRunes+1))
	assert.ErrorIs(t, err, pkg.ErrValidation)
	_, err = f.threads.CreateThread(ctx, qa, 0, "opening theory?")
	assert.ErrorIs(t, err, pkg.ErrUnauthenticated)

	v, err := f.threads.CreateThread(ctx, qa, 1, " opening theory? ")
	require.NoError(t, err)
	assert.Equal(t, "opening theory?", v.Title)
	assert.Equal(t, "open", v.Status)

	tid, _ := pkg.ParseID(v.ID)
	got, err := f.threads.GetThread(ctx, qa.ID, tid)
	require.NoError(t, err)
	assert.Equal(t, v.Title, got.Title)

	_, err = f.threads.GetThread(ctx, text.ID, tid)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	for i := 0; i < 2; i++ {
		_, err = f.threads.CreateThread(ctx, qa, 2, "another one")
		require.NoError(t, err)
	}
	p, err := f.threads.ListThreads(ctx, qa.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Total)
	assert.Len(t, p.Items, 2)
	assert.True(t, p.HasMore)

	p, err = f.threads.ListThreads(ctx, qa.ID, math.MaxInt, 20)
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.False(t, p.HasMore)
}

func TestAcceptAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.community(t, model.KindSociety, "chess")
	qa := f.channel(t, c.ID, "q-and-a", model.PrivacyPublic, model.ChannelQA)

	th, err := f.threads.CreateThread(ctx, qa, 1, "opening theory?")
	require.NoError(t, err)
	other, err := f.threads.CreateThread(ctx, qa, 1, "endgames?")
	require.NoError(t, err)
	tid, _ := pkg.ParseID(th.ID)
	otherID, _ := pkg.ParseID(other.ID)

	reply, err := f.messages.CreateThreadMessage(ctx, CreateMessageInput{ChannelID: qa.ID, ThreadID: tid, AuthorID: 2, SessionName: "bob", Content: "play e4"})
	require.NoError(t, err)
	elsewhere, err := f.messages.CreateThreadMessage(ctx, CreateMessageInput{ChannelID: qa.ID, ThreadID: otherID, AuthorID: 2, SessionName: "bob", Content: "opposition"})
	require.NoError(t, err)
	replyID, _ := pkg.ParseID(reply.ID)
	elsewhereID, _ := pkg.ParseID(elsewhere.ID)

	in := AcceptAnswerInput{ChannelID: qa.ID, ThreadID: tid, MessageID: replyID, UserID: 2}
	_, err = f.threads.AcceptAnswer(ctx, in)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	in.UserID = 1
	in.MessageID = elsewhereID
	_, err = f.threads.AcceptAnswer(ctx, in)
	assert.ErrorIs(t, err, pkg.ErrValidation)

	in.MessageID = 9999
	_, err = f.threads.AcceptAnswer(ctx, in)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	in.MessageID = replyID
	v, err := f.threads.AcceptAnswer(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "answered", v.Status)
	assert.Equal(t, reply.ID, v.AcceptedMessageID)

	// 频道管理者也可以采纳
	v, err = f.threads.AcceptAnswer(ctx, AcceptAnswerInput{ChannelID: qa.ID, ThreadID: otherID, MessageID: elsewhereID, UserID: 3, CanManage: true})
	require.NoError(t, err)
	assert.Equal(t, elsewhere.ID, v.AcceptedMessageID)

	got, err := f.threads.GetThread(ctx, qa.ID, tid)
	require.NoError(t, err)
	assert.Equal(t, "answered", got.Status)
	assert.Equal(t, reply.ID, got.AcceptedMessageID)
}
