package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

type fakeBot struct {
	sent   []*telego.SendMessageParams
	failOn int64
}

func (b *fakeBot) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	if params.ChatID.ID == b.failOn {
		return nil, errors.New("chat not found")
	}
	b.sent = append(b.sent, params)
	return &telego.Message{Text: params.Text}, nil
}

type fakeSession struct {
	channel string
	content string
	err     error
}

func (s *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.channel, s.content = channelID, content
	return &discordgo.Message{Content: content}, s.err
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Notification) error { return f.err }

func TestJobComplete(t *testing.T) {
	job := game.NewTimedJob("job-7", game.Pesca, "Trucha", 0, 1000)

	n := JobComplete(job)
	assert.Equal(t, "job-7", n.ID)
	assert.Equal(t, "Job Complete!", n.Title)
	assert.Equal(t, `Your Pesca job "Trucha" has finished.`, n.Message)
}

func TestTelegramNotifier(t *testing.T) {
	bot := &fakeBot{failOn: 2}
	tn := NewTelegramNotifierWithBot(bot, []int64{1, 2, 3})

	err := tn.Notify(context.Background(), Notification{Title: "T", Message: "M"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram chat 2")

	require.Len(t, bot.sent, 2, "a failing chat does not stop the others")
	assert.Equal(t, int64(1), bot.sent[0].ChatID.ID)
	assert.Equal(t, int64(3), bot.sent[1].ChatID.ID)
	assert.Equal(t, "T\nM", bot.sent[0].Text)
}

func TestTelegramNotifier_InvalidToken(t *testing.T) {
	_, err := NewTelegramNotifier("not-a-token", nil)
	assert.Error(t, err)
}

func TestDiscordNotifier(t *testing.T) {
	s := &fakeSession{}
	dn := NewDiscordNotifierWithSession(s, "chan-1")

	require.NoError(t, dn.Notify(context.Background(), Notification{Title: "Job Complete!", Message: "done"}))
	assert.Equal(t, "chan-1", s.channel)
	assert.Equal(t, "**Job Complete!**\ndone", s.content)

	s.err = errors.New("missing access")
	assert.ErrorContains(t, dn.Notify(context.Background(), Notification{}), "missing access")
}

func TestMulti(t *testing.T) {
	bot := &fakeBot{}
	errA := errors.New("a")
	errB := errors.New("b")

	m := Multi{
		failingNotifier{errA},
		NewLogNotifier(logger.NewNop()),
		NewTelegramNotifierWithBot(bot, []int64{5}),
		failingNotifier{errB},
	}

	err := m.Notify(context.Background(), Notification{Title: "x"})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Len(t, bot.sent, 1)

	assert.NoError(t, Multi{}.Notify(context.Background(), Notification{}))
}
