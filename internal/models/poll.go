package models

import (
	"strings"
	"time"

	"github.com/countmein/backend/pkg/textutil"
)

// TitleLowerLength is how many characters of the title are kept for prefix search.
const TitleLowerLength = 512

// Poll is a multi-option poll owned by the user who created it.
type Poll struct {
	ID         int64     `json:"id"`
	AdminID    string    `json:"admin_id"`
	Title      string    `json:"title"`
	TitleLower string    `json:"-"`
	Active     bool      `json:"active"`
	Multi      bool      `json:"multi"`
	Options    []Option  `json:"options"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Option is one answer of a poll. Respondents keep the order in which they joined.
type Option struct {
	Title       string       `json:"title"`
	Respondents []Respondent `json:"respondents"`
}

// Respondent is the name snapshot stored on an option for one user.
type Respondent struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

// NewPoll returns an active poll with no options.
func NewPoll(adminID, title string) *Poll {
	p := &Poll{AdminID: adminID, Active: true, Multi: true}
	p.SetTitle(title)
	return p
}

// SetTitle sets the title and recomputes the lowercased search prefix.
func (p *Poll) SetTitle(title string) {
	p.Title = title
	p.TitleLower = strings.ToLower(textutil.Truncate(title, TitleLowerLength))
}

// ValidateTitle returns ErrTitleTooLong when title has more than max characters.
func ValidateTitle(title string, max int) error {
	if max > 0 && textutil.Len(title) > max {
		return ErrTitleTooLong
	}
	return nil
}

// CanFinish returns ErrPrematureCompletion while the poll has no options.
func (p *Poll) CanFinish() error {
	if len(p.Options) == 0 {
		return ErrPrematureCompletion
	}
	return nil
}

// AppendOption adds an option with the given title at the end of the list.
func (p *Poll) AppendOption(title string, maxOptions int) error {
	if maxOptions > 0 && len(p.Options) >= maxOptions {
		return ErrTooManyOptions
	}
	p.Options = append(p.Options, Option{Title: title})
	return nil
}

// Toggle flips userID's membership on option idx. It reports whether the user was added.
func (p *Poll) Toggle(idx int, userID string, profile Profile) (bool, error) {
	if idx < 0 || idx >= len(p.Options) {
		return false, ErrInvalidOption
	}
	return p.Options[idx].Toggle(userID, profile), nil
}

// RespondentCount returns the number of distinct users present on any option.
func (p *Poll) RespondentCount() int {
	seen := make(map[string]struct{})
	for _, o := range p.Options {
		for _, r := range o.Respondents {
			seen[r.UserID] = struct{}{}
		}
	}
	return len(seen)
}

// OptionsSummary joins the option titles with " / ".
func (p *Poll) OptionsSummary() string {
	titles := make([]string, len(p.Options))
	for i, o := range p.Options {
		titles[i] = o.Title
	}
	return strings.Join(titles, " / ")
}

// Clone returns a deep copy of the poll.
func (p *Poll) Clone() *Poll {
	c := *p
	c.Options = make([]Option, len(p.Options))
	for i, o := range p.Options {
		c.Options[i] = Option{Title: o.Title, Respondents: append([]Respondent(nil), o.Respondents...)}
	}
	return &c
}

// Toggle removes userID if present, otherwise appends it with the profile's names.
func (o *Option) Toggle(userID string, profile Profile) bool {
	for i, r := range o.Respondents {
		if r.UserID == userID {
			o.Respondents = append(o.Respondents[:i], o.Respondents[i+1:]...)
			return false
		}
	}
	o.Respondents = append(o.Respondents, Respondent{
		UserID:    userID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	})
	return true
}
