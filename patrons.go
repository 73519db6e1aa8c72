package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	PATRON_ACTIVE      = "Active patron"
	PATRON_NO_REWARD   = "No Reward"
	PATRON_MIN_PLEDGE  = 5
	PATRON_NAME_LENGTH = 24
)

type Patron struct {
	Name     string
	Tier     string
	Pledge   int
	Lifetime int
	Status   string
}

var money_pattern = regexp.MustCompile(`\d+`)

// "$10.00" => 10, "$1,234.00" => 1234, "" => 0
func parse_dollars(s string) int {
	digits := money_pattern.FindString(strings.ReplaceAll(s, ",", ""))
	if digits == "" {
		return 0
	}
	i, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return i
}

// reads a Patreon member export.
// columns are found by header name, extra columns are ignored.
func read_patrons(r io.Reader) ([]Patron, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true

	header, err := rdr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read patron list header: %w", err)
	}
	idx := map[string]int{}
	for i, col := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF"))] = i
	}
	for _, col := range []string{"Name", "Tier", "Pledge $", "Lifetime $", "Patron Status"} {
		if _, present := idx[col]; !present {
			return nil, fmt.Errorf("patron list is missing column %q", col)
		}
	}

	field := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	patron_list := []Patron{}
	for {
		row, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read patron list: %w", err)
		}
		patron_list = append(patron_list, Patron{
			Name:     field(row, "Name"),
			Tier:     field(row, "Tier"),
			Pledge:   parse_dollars(field(row, "Pledge $")),
			Lifetime: parse_dollars(field(row, "Lifetime $")),
			Status:   field(row, "Patron Status"),
		})
	}
	return patron_list, nil
}

func is_visible_patron(p Patron) bool {
	return p.Status == PATRON_ACTIVE &&
		p.Tier != "" && p.Tier != PATRON_NO_REWARD &&
		p.Lifetime > 0 &&
		p.Pledge >= PATRON_MIN_PLEDGE
}

// "amy SMITH" => "Amy Smith", truncated and safe within a single-quoted lua string.
func patron_name(name string) string {
	name = title_case(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > PATRON_NAME_LENGTH {
		name = string([]rune(name)[:PATRON_NAME_LENGTH])
	}
	return lua_quote(name)
}

func lua_quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

type patron_tier struct {
	title  string
	people []Patron
}

func (t patron_tier) mean_pledge() float64 {
	total := 0
	for _, p := range t.people {
		total += p.Pledge
	}
	return float64(total) / float64(len(t.people))
}

// renders the patron list as the body of a lua table:
//
//	{title='Gold',people={'Amy','Bob'}},{},{title='Silver',people={'Cat'}}
//
// tiers are ordered by their average pledge, people by lifetime contribution.
func serialize_patrons(patron_list []Patron) string {
	visible := []Patron{}
	for _, p := range patron_list {
		if is_visible_patron(p) {
			visible = append(visible, p)
		}
	}
	slices.SortStableFunc(visible, func(a, b Patron) int {
		return b.Lifetime - a.Lifetime
	})

	tier_list := []*patron_tier{}
	tier_idx := map[string]*patron_tier{}
	for _, p := range visible {
		tier, present := tier_idx[p.Tier]
		if !present {
			tier = &patron_tier{title: p.Tier}
			tier_idx[p.Tier] = tier
			tier_list = append(tier_list, tier)
		}
		tier.people = append(tier.people, p)
	}
	slices.SortStableFunc(tier_list, func(a, b *patron_tier) int {
		am, bm := a.mean_pledge(), b.mean_pledge()
		switch {
		case am > bm:
			return -1
		case am < bm:
			return 1
		}
		return 0
	})

	group_list := []string{}
	for _, tier := range tier_list {
		name_list := []string{}
		for _, p := range tier.people {
			name_list = append(name_list, "'"+patron_name(p.Name)+"'")
		}
		group_list = append(group_list, fmt.Sprintf("{title='%s',people={%s}}", lua_quote(tier.title), strings.Join(name_list, ",")))
	}
	return strings.Join(group_list, ",{},")
}
