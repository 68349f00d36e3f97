// Package discord adapts the Discord gateway to the submission
// pipeline: inbound messages and voice state changes become events, and
// announcements go back out to the submission channel.
package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/gateway"
	"github.com/kellyjadams/break-into-data-bot/internal/submit"
)

// Gateway owns the Discord session and routes its events.
type Gateway struct {
	session           *discordgo.Session
	processor         *submit.Processor
	voice             *submit.VoiceTracker
	submissionChannel string
	log               *zap.Logger
}

// New creates a Gateway and registers its handlers on a fresh session.
// submissionChannel is the channel ID where free-text submissions and
// proof uploads are accepted.
func New(token, submissionChannel string, processor *submit.Processor, voice *submit.VoiceTracker, log *zap.Logger) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	g := &Gateway{
		session:           session,
		processor:         processor,
		voice:             voice,
		submissionChannel: submissionChannel,
		log:               log,
	}

	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	session.AddHandler(g.onMessageCreate)
	session.AddHandler(g.onVoiceStateUpdate)

	return g, nil
}

// Open connects to the gateway and starts receiving events.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	g.log.Info("discord gateway connected")
	return nil
}

// Close shuts the gateway connection down.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// Announce posts text to the submission channel.
func (g *Gateway) Announce(text string) error {
	_, err := g.session.ChannelMessageSend(g.submissionChannel, text)
	return err
}

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		g.log.Warn("unparseable user id", zap.String("id", m.Author.ID))
		return
	}

	attachments := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, a.URL)
	}

	ev := gateway.MessageEvent{
		UserID:      userID,
		Username:    m.Author.Username,
		Text:        m.Content,
		Attachments: attachments,
		CreatedAt:   m.Timestamp,
	}
	ctx := context.Background()

	if m.ChannelID == g.submissionChannel {
		reply, err := g.processor.HandleSubmissionMessage(ctx, ev)
		if err != nil {
			g.log.Error("submission handling failed",
				zap.Int64("user", userID), zap.Error(err))
			return
		}
		if reply == "" {
			return
		}
		if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
			g.log.Error("reply failed", zap.Error(err))
		}
		return
	}

	if len(attachments) == 0 {
		return
	}
	ev.Channel = g.channelName(s, m.ChannelID)
	if ev.Channel == "" {
		return
	}
	if err := g.processor.HandleCategoryUpload(ctx, ev); err != nil {
		g.log.Error("category upload handling failed",
			zap.Int64("user", userID), zap.String("channel", ev.Channel), zap.Error(err))
	}
}

func (g *Gateway) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	userID, err := strconv.ParseInt(v.UserID, 10, 64)
	if err != nil {
		g.log.Warn("unparseable user id", zap.String("id", v.UserID))
		return
	}

	before := ""
	if v.BeforeUpdate != nil {
		before = g.channelName(s, v.BeforeUpdate.ChannelID)
	}
	after := g.channelName(s, v.ChannelID)
	if before == after {
		return
	}

	ev := gateway.PresenceEvent{
		UserID:   userID,
		Username: g.memberName(s, v),
		Before:   before,
		After:    after,
	}
	if err := g.voice.HandlePresence(context.Background(), ev); err != nil {
		g.log.Error("presence handling failed",
			zap.Int64("user", userID), zap.Error(err))
	}
}

// channelName resolves a channel ID to its name, preferring the session
// state cache. An empty ID or a failed lookup yields "".
func (g *Gateway) channelName(s *discordgo.Session, channelID string) string {
	if channelID == "" {
		return ""
	}
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch.Name
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		g.log.Warn("channel lookup failed", zap.String("channel", channelID), zap.Error(err))
		return ""
	}
	return ch.Name
}

func (g *Gateway) memberName(s *discordgo.Session, v *discordgo.VoiceStateUpdate) string {
	if v.Member != nil && v.Member.User != nil {
		return v.Member.User.Username
	}
	if member, err := s.State.Member(v.GuildID, v.UserID); err == nil && member.User != nil {
		return member.User.Username
	}
	return ""
}
