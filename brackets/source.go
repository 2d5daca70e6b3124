package brackets

import (
	"fmt"
	"strconv"
	"strings"
)

type SourceKind byte

const (
	SourceWinner SourceKind = 'W'
	SourceLoser  SourceKind = 'L'
	SourceGroup  SourceKind = 'G'
)

// Source describes where a team slot gets its team from.
type Source struct {
	Kind     SourceKind
	MatchUID string
	Group    string
	Rank     int
}

func WinnerOf(uid string) string { return "W:" + uid }

func LoserOf(uid string) string { return "L:" + uid }

func GroupPlace(group string, rank int) string {
	return fmt.Sprintf("G:%s:%d", group, rank)
}

func ParseSource(s string) (Source, bool) {
	if len(s) < 3 || s[1] != ':' {
		return Source{}, false
	}
	switch SourceKind(s[0]) {
	case SourceWinner, SourceLoser:
		return Source{Kind: SourceKind(s[0]), MatchUID: s[2:]}, true
	case SourceGroup:
		group, rankStr, ok := strings.Cut(s[2:], ":")
		if !ok || group == "" {
			return Source{}, false
		}
		rank, err := strconv.Atoi(rankStr)
		if err != nil || rank < 1 {
			return Source{}, false
		}
		return Source{Kind: SourceGroup, Group: group, Rank: rank}, true
	}
	return Source{}, false
}

func (s Source) String() string {
	switch s.Kind {
	case SourceWinner:
		return WinnerOf(s.MatchUID)
	case SourceLoser:
		return LoserOf(s.MatchUID)
	case SourceGroup:
		return GroupPlace(s.Group, s.Rank)
	}
	return ""
}
