package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/modeltranslation"
	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/schemasync"
)

const manifestDir = "../../discovery/testdata/apps"

func newTestCLI(input string) (*cli, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &cli{
		in:  bufio.NewReader(strings.NewReader(input)),
		out: out,
		opts: []modeltranslation.Option{
			modeltranslation.WithConfig(&config.ConfigurationDefault{
				Languages:                      []string{"en", "de"},
				TranslationEnableRegistrations: true,
				WorkerPoolCapacity:             2,
			}),
		},
	}, out
}

func TestList(t *testing.T) {
	c, out := newTestCLI("")
	require.NoError(t, c.cmdList(t.Context(), []string{"--manifests", manifestDir, "--units", "blog, missing"}))

	require.Equal(t, strings.Join([]string{
		"blog.Article",
		"  body -> body_en, body_de",
		"  title -> title_en, title_de",
		"blog.Category",
		"  name -> name_en, name_de",
		"",
	}, "\n"), out.String())
}

func TestListFailingUnit(t *testing.T) {
	c, _ := newTestCLI("")
	err := c.cmdList(t.Context(), []string{"--manifests", manifestDir, "--units", "broken"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
}

func TestListNothingRegistered(t *testing.T) {
	c, out := newTestCLI("")
	require.NoError(t, c.cmdList(t.Context(), []string{"--manifests", manifestDir, "--units", "empty"}))
	require.Equal(t, "No models registered for translation\n", out.String())
}

func TestCheckWithoutDatabase(t *testing.T) {
	c, _ := newTestCLI("")
	err := c.cmdCheck(t.Context(), []string{"--manifests", manifestDir, "--units", "blog"})
	require.ErrorIs(t, err, schemasync.ErrNoDatabase)
}

func TestPromptConfirmer(t *testing.T) {
	plan := schemasync.ModelPlan{
		ModelID: "blog.Article",
		Table:   "articles",
		Drift:   []schemasync.Drift{{BaseField: "title", MissingLanguages: []string{"de"}}},
		Statements: []schemasync.Statement{
			{SQL: `ALTER TABLE "articles" ADD COLUMN "title_de" varchar(255)`},
		},
	}

	testCases := []struct {
		name        string
		input       string
		interactive bool
		want        bool
		reprompts   int
	}{
		{name: "yes", input: "y\n", interactive: true, want: true},
		{name: "full yes", input: "YES\n", interactive: true, want: true},
		{name: "no", input: "no\n", interactive: true, want: false},
		{name: "empty answer declines", input: "\n", interactive: true, want: false},
		{name: "end of input declines", input: "", interactive: true, want: false},
		{name: "invalid answer asks again", input: "maybe\ny\n", interactive: true, want: true, reprompts: 1},
		{name: "noinput confirms", input: "", interactive: false, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, out := newTestCLI(tc.input)
			confirmer := &promptConfirmer{cli: c, interactive: tc.interactive}

			ok, err := confirmer.Confirm(context.Background(), plan)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)

			text := out.String()
			require.Contains(t, text, `Missing languages in "title" field from "blog.Article" model: de`)
			require.Contains(t, text, `SQL to synchronize "blog.Article" schema:`)
			require.Contains(t, text, `ADD COLUMN "title_de"`)
			require.Equal(t, tc.reprompts, strings.Count(text, "Please answer yes or no"))
		})
	}
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"blog", "news"}, splitList(" blog, ,news,"))
	require.Nil(t, splitList(""))
}
