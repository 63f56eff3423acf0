package services

import (
	"context"
	"errors"
	"testing"
	"time"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

func TestOptionTextCodec(t *testing.T) {
	raw := EncodeOptionText(OptionContent{Text: "Yes", Emoji: "👍"})
	got := DecodeOptionText(raw)
	if got.Text != "Yes" || got.Emoji != "👍" {
		t.Errorf("round trip failed: %+v", got)
	}

	cases := []struct {
		in   string
		want OptionContent
	}{
		{"Plain old option", OptionContent{Text: "Plain old option", Emoji: DefaultOptionEmoji}},
		{`{"text":"No"}`, OptionContent{Text: "No", Emoji: DefaultOptionEmoji}},
		{`{broken json`, OptionContent{Text: `{broken json`, Emoji: DefaultOptionEmoji}},
		{`{"emoji":"🔥"}`, OptionContent{Text: `{"emoji":"🔥"}`, Emoji: DefaultOptionEmoji}},
		{"", OptionContent{Text: "", Emoji: DefaultOptionEmoji}},
	}
	for _, tc := range cases {
		if got := DecodeOptionText(tc.in); got != tc.want {
			t.Errorf("DecodeOptionText(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}

	if got := DecodeOptionText(EncodeOptionText(OptionContent{Text: "x"})); got.Emoji != DefaultOptionEmoji {
		t.Errorf("encode should fill default emoji, got %+v", got)
	}
}

func TestLegacyOptionRowsDecode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	d, poll := env.pollDiscussion(t, author, false, "A", "B")

	env.db.Model(&models.PollOption{}).Where("id = ?", poll.Options[0].ID).
		UpdateColumn("option_text", "Legacy text")

	got, err := env.polls.GetPoll(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Options[0].Text != "Legacy text" || got.Options[0].Emoji != DefaultOptionEmoji {
		t.Errorf("legacy option decoded as %+v", got.Options[0])
	}
	if got.Options[1].Text != "B" {
		t.Errorf("options should keep display order, got %+v", got.Options)
	}
}

func optionIndex(p *models.Poll) map[string]models.PollOption {
	m := make(map[string]models.PollOption, len(p.Options))
	for _, o := range p.Options {
		m[o.Text] = o
	}
	return m
}

func TestRedBlueScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u1, u2, u3 := env.user(t, "u1"), env.user(t, "u2"), env.user(t, "u3")
	_, poll := env.pollDiscussion(t, author, false, "Red", "Blue")
	opts := optionIndex(poll)
	red, blue := opts["Red"].ID, opts["Blue"].ID

	for _, step := range []struct {
		user, option uint
	}{{u1, red}, {u2, red}, {u3, blue}} {
		if _, err := env.polls.CastVotes(ctx, poll.ID, []uint{step.option}, step.user); err != nil {
			t.Fatal(err)
		}
	}

	check := func(wantRed, wantBlue, wantTotal int) {
		t.Helper()
		var p models.Poll
		env.db.Preload("Options").First(&p, poll.ID)
		counts := map[uint]int{}
		for _, o := range p.Options {
			counts[o.ID] = o.VoteCount
		}
		if counts[red] != wantRed || counts[blue] != wantBlue || p.TotalVotes != wantTotal {
			t.Errorf("expected red=%d blue=%d total=%d, got red=%d blue=%d total=%d",
				wantRed, wantBlue, wantTotal, counts[red], counts[blue], p.TotalVotes)
		}
	}
	check(2, 1, 3)

	if _, err := env.polls.CastVotes(ctx, poll.ID, []uint{blue}, u1); err != nil {
		t.Fatal(err)
	}
	check(1, 2, 3)
}

func TestSingleChoiceReplacesVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "voter")
	_, poll := env.pollDiscussion(t, author, false, "A", "B")
	opts := optionIndex(poll)

	if _, err := env.polls.CastVotes(ctx, poll.ID, []uint{opts["A"].ID}, u); err != nil {
		t.Fatal(err)
	}
	if _, err := env.polls.CastVotes(ctx, poll.ID, []uint{opts["B"].ID}, u); err != nil {
		t.Fatal(err)
	}
	var rows []models.PollVote
	env.db.Where("poll_id = ? AND user_id = ?", poll.ID, u).Find(&rows)
	if len(rows) != 1 || rows[0].OptionID != opts["B"].ID {
		t.Fatalf("expected exactly one vote for B, got %+v", rows)
	}

	_, err := env.polls.CastVotes(ctx, poll.ID, []uint{opts["A"].ID, opts["B"].ID}, u)
	assertCode(t, err, utils.ErrValidation)

	// 单选投票 toggle 其他选项时替换原选择
	if _, err := env.polls.ToggleOption(ctx, poll.ID, opts["A"].ID, u); err != nil {
		t.Fatal(err)
	}
	ids, _ := env.polls.UserVotes(ctx, poll.ID, u)
	if len(ids) != 1 || ids[0] != opts["A"].ID {
		t.Errorf("toggle should replace selection with A, got %v", ids)
	}

	// 空集合撤销全部
	p, err := env.polls.CastVotes(ctx, poll.ID, nil, u)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalVotes != 0 {
		t.Errorf("expected 0 total votes after retract, got %d", p.TotalVotes)
	}
}

func TestMultipleChoiceToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "voter")
	_, poll := env.pollDiscussion(t, author, true, "A", "B", "C")
	opts := optionIndex(poll)

	p, err := env.polls.CastVotes(ctx, poll.ID, []uint{opts["A"].ID, opts["B"].ID, opts["A"].ID}, u)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalVotes != 2 {
		t.Errorf("duplicate ids should collapse, total=%d", p.TotalVotes)
	}

	if _, err := env.polls.ToggleOption(ctx, poll.ID, opts["A"].ID, u); err != nil {
		t.Fatal(err)
	}
	ids, _ := env.polls.UserVotes(ctx, poll.ID, u)
	if len(ids) != 1 || ids[0] != opts["B"].ID {
		t.Errorf("expected only B after toggling A off, got %v", ids)
	}

	if _, err := env.polls.ToggleOption(ctx, poll.ID, opts["C"].ID, u); err != nil {
		t.Fatal(err)
	}
	ids, _ = env.polls.UserVotes(ctx, poll.ID, u)
	if len(ids) != 2 {
		t.Errorf("multi choice toggle should add C, got %v", ids)
	}
}

func TestCastVotesRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "voter")
	d, poll := env.pollDiscussion(t, author, false, "A", "B")
	_, otherPoll := env.pollDiscussion(t, author, false, "X", "Y")

	_, err := env.polls.CastVotes(ctx, poll.ID, []uint{otherPoll.Options[0].ID}, u)
	assertCode(t, err, utils.ErrValidation)

	_, err = env.polls.CastVotes(ctx, 9999, []uint{1}, u)
	assertCode(t, err, utils.ErrNotFound)

	// 截止后拒绝，且先于单选校验
	past := time.Now().Add(-time.Hour)
	env.db.Model(&models.Poll{}).Where("id = ?", poll.ID).UpdateColumn("expires_at", past)
	_, err = env.polls.CastVotes(ctx, poll.ID, []uint{poll.Options[0].ID, poll.Options[1].ID}, u)
	assertCode(t, err, utils.ErrExpired)

	if err := env.discussions.DeleteDiscussion(ctx, d.ID, author); err != nil {
		t.Fatal(err)
	}
	_, err = env.polls.CastVotes(ctx, poll.ID, []uint{poll.Options[0].ID}, u)
	assertCode(t, err, utils.ErrNotFound)
}

func TestCreatePollValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	text := env.discussion(t, author, "plain")

	_, err := env.polls.CreatePoll(ctx, CreatePollInput{
		DiscussionID: text.ID, Question: "q",
		Options: []OptionContent{{Text: "a"}, {Text: "b"}},
	})
	assertCode(t, err, utils.ErrValidation)

	d, _ := env.pollDiscussion(t, author, false, "A", "B")
	_, err = env.polls.CreatePoll(ctx, CreatePollInput{
		DiscussionID: d.ID, Question: "again",
		Options: []OptionContent{{Text: "a"}, {Text: "b"}},
	})
	assertCode(t, err, utils.ErrConflict)

	_, err = env.polls.CreatePoll(ctx, CreatePollInput{
		DiscussionID: d.ID, Question: "q", Options: []OptionContent{{Text: "only"}},
	})
	assertCode(t, err, utils.ErrValidation)

	past := time.Now().Add(-time.Minute)
	_, err = env.polls.CreatePoll(ctx, CreatePollInput{
		DiscussionID: d.ID, Question: "q", ExpiresAt: &past,
		Options: []OptionContent{{Text: "a"}, {Text: "b"}},
	})
	assertCode(t, err, utils.ErrValidation)
}

func TestPollCreationIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")

	_, err := env.discussions.CreateDiscussion(ctx, author, DiscussionInput{
		Title: "broken", ContentType: models.ContentTypePoll, CategoryID: 1,
		Poll: &CreatePollInput{Question: "q", Options: []OptionContent{{Text: "a"}, {Text: " "}}},
	})
	assertCode(t, err, utils.ErrValidation)

	var discussions, polls int64
	env.db.Model(&models.Discussion{}).Count(&discussions)
	env.db.Model(&models.Poll{}).Count(&polls)
	if discussions != 0 || polls != 0 {
		t.Errorf("expected no partial rows, got %d discussions %d polls", discussions, polls)
	}
}

func TestVotersRespectAnonymity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "voter")
	_, poll := env.pollDiscussion(t, author, false, "A", "B")

	env.polls.CastVotes(ctx, poll.ID, []uint{poll.Options[1].ID}, u)
	voters, err := env.polls.Voters(ctx, poll.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := voters[poll.Options[1].ID]; len(got) != 1 || got[0] != u {
		t.Errorf("expected voter %d, got %v", u, got)
	}

	env.db.Model(&models.Poll{}).Where("id = ?", poll.ID).UpdateColumn("is_anonymous", true)
	_, err = env.polls.Voters(ctx, poll.ID)
	assertCode(t, err, utils.ErrForbidden)
}

func TestPollReadsHideDeletedDiscussion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "voter")
	d, poll := env.pollDiscussion(t, author, false, "A", "B")
	if _, err := env.polls.CastVotes(ctx, poll.ID, []uint{poll.Options[0].ID}, u); err != nil {
		t.Fatal(err)
	}

	if err := env.discussions.DeleteDiscussion(ctx, d.ID, author); err != nil {
		t.Fatal(err)
	}
	_, err := env.polls.Voters(ctx, poll.ID)
	assertCode(t, err, utils.ErrNotFound)
	_, err = env.polls.UserVotes(ctx, poll.ID, u)
	assertCode(t, err, utils.ErrNotFound)
}

func TestPollRecountStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "voter")
	_, poll := env.pollDiscussion(t, author, false, "A", "B")

	env.polls.recount = func(tx *gorm.DB, p *models.Poll) error {
		return errors.New("recount unavailable")
	}
	_, err := env.polls.CastVotes(ctx, poll.ID, []uint{poll.Options[0].ID}, u)
	assertCode(t, err, utils.ErrStaleAggregate)

	env.reconciler.Drain(ctx)
	var p models.Poll
	env.db.First(&p, poll.ID)
	if p.TotalVotes != 1 {
		t.Errorf("reconciler should repair total_votes, got %d", p.TotalVotes)
	}
}
