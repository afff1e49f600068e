package localization

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
)

// Manager translates the human readable labels of models and fields, such as verbose names.
type Manager interface {
	Bundle() *i18n.Bundle
	// Translate renders messageID in the languages carried by ctx.
	Translate(ctx context.Context, messageID string) string
	// TranslateTo renders messageID in lang.
	TranslateTo(ctx context.Context, lang string, messageID string) string
}

type managerImpl struct {
	bundle *i18n.Bundle
}

// NewManager loads messages.<lang>.toml for every language found in translationsFolder.
// Languages without a message file simply echo their message ids.
func NewManager(translationsFolder string, defaultLanguage string, languages ...string) (Manager, error) {
	if translationsFolder == "" {
		translationsFolder = "localization"
	}

	defaultTag := language.English
	if defaultLanguage != "" {
		tag, err := language.Parse(defaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("parse default language %q: %w", defaultLanguage, err)
		}
		defaultTag = tag
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, lang := range languages {
		path := filepath.Join(translationsFolder, fmt.Sprintf("messages.%v.toml", lang))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("load message file %s: %w", path, err)
		}
	}

	return &managerImpl{bundle: bundle}, nil
}

func (s *managerImpl) Bundle() *i18n.Bundle {
	return s.bundle
}

func (s *managerImpl) Translate(ctx context.Context, messageID string) string {
	return s.localize(ctx, FromContext(ctx), messageID)
}

func (s *managerImpl) TranslateTo(ctx context.Context, lang string, messageID string) string {
	return s.localize(ctx, []string{lang}, messageID)
}

func (s *managerImpl) localize(ctx context.Context, languages []string, messageID string) string {
	if messageID == "" {
		return ""
	}

	localizer := i18n.NewLocalizer(s.bundle, languages...)

	translated, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:      messageID,
		DefaultMessage: &i18n.Message{ID: messageID, Other: messageID},
	})
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if !errors.As(err, &notFound) {
			util.Log(ctx).WithError(err).
				WithField("messageID", messageID).
				Warn("localize -- could not perform translation")
		}
	}

	if translated == "" {
		return messageID
	}
	return translated
}
