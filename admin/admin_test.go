package admin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/modeltranslation/admin"
	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
)

type article struct {
	ID     int64  `gorm:"primaryKey"`
	Title  string `gorm:"not null" verbose:"Title"`
	Body   string `verbose:"Body text"`
	Slug   string
	Rating int
}

type recordingSaver struct {
	saved []*model.Instance
}

func (r *recordingSaver) Save(_ context.Context, inst *model.Instance) error {
	r.saved = append(r.saved, inst)
	return nil
}

type AdminTestSuite struct {
	suite.Suite

	registry *registry.Registry
	admin    *admin.ModelAdmin
}

func TestAdminSuite(t *testing.T) {
	suite.Run(t, &AdminTestSuite{})
}

func (s *AdminTestSuite) SetupTest() {
	catalog := model.NewCatalog()
	_, err := catalog.DefineStruct("blog.Article", &article{})
	s.Require().NoError(err)

	resolver, err := localization.NewResolver([]string{"en", "de"}, "en")
	s.Require().NoError(err)

	s.registry = registry.New(catalog, resolver)
	s.Require().NoError(s.registry.Register(context.Background(), "blog.Article", "title", "body"))

	labels, err := localization.NewManager("../localization/testdata", "en", "en", "de")
	s.Require().NoError(err)

	s.admin, err = admin.New(s.registry, "blog.Article", admin.WithLabels(labels))
	s.Require().NoError(err)
}

func (s *AdminTestSuite) TestNewRequiresRegisteredModel() {
	_, err := admin.New(s.registry, "blog.Comment")
	s.Require().ErrorIs(err, registry.ErrNotRegistered)
}

func (s *AdminTestSuite) TestExpandFields() {
	testCases := []struct {
		name     string
		fields   []string
		expected []string
	}{
		{name: "nil stays nil", fields: nil, expected: nil},
		{name: "untranslated kept", fields: []string{"slug", "rating"}, expected: []string{"slug", "rating"}},
		{
			name:     "translated expanded in place",
			fields:   []string{"slug", "title", "rating", "body"},
			expected: []string{"slug", "title_en", "title_de", "rating", "body_en", "body_de"},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, s.admin.ExpandFields(tc.fields))
		})
	}
}

func (s *AdminTestSuite) TestExpandExplicitFieldsets() {
	fieldsets := []admin.Fieldset{
		{Name: "Main", Fields: []string{"title", "slug"}, Classes: []string{"wide"}},
		{Name: "Content", Fields: []string{"body"}},
	}

	s.Equal([]admin.Fieldset{
		{Name: "Main", Fields: []string{"title_en", "title_de", "slug"}, Classes: []string{"wide"}},
		{Name: "Content", Fields: []string{"body_en", "body_de"}},
	}, s.admin.ExpandFieldsets(context.Background(), fieldsets))
}

func (s *AdminTestSuite) TestDefaultFieldsets() {
	s.Equal([]admin.Fieldset{
		{Name: "", Fields: []string{"slug", "rating"}},
		{Name: "Body text", Fields: []string{"body_en", "body_de"}, Classes: []string{admin.FieldsetClass}},
		{Name: "Title", Fields: []string{"title_en", "title_de"}, Classes: []string{admin.FieldsetClass}},
	}, s.admin.ExpandFieldsets(context.Background(), nil))

	deCtx := localization.Activate(context.Background(), "de")
	fieldsets := s.admin.ExpandFieldsets(deCtx, nil)
	s.Require().Len(fieldsets, 3)
	s.Equal("Fließtext", fieldsets[1].Name)
	s.Equal("Titel", fieldsets[2].Name)
}

func (s *AdminTestSuite) TestExpandListEditable() {
	editable, display := s.admin.ExpandListEditable(
		[]string{"title", "rating"},
		[]string{"id", "title", "rating"},
	)
	s.Equal([]string{"title_en", "title_de", "rating"}, editable)
	s.Equal([]string{"id", "title_en", "title_de", "rating"}, display)

	editable, display = s.admin.ExpandListEditable(nil, []string{"id", "title"})
	s.Nil(editable)
	s.Equal([]string{"id", "title"}, display)
}

func (s *AdminTestSuite) TestExpandPrepopulated() {
	s.Equal(map[string][]string{
		"slug":  {"title_en"},
		"other": {"rating", "title"},
	}, s.admin.ExpandPrepopulated(map[string][]string{
		"slug":  {"title", "body"},
		"other": {"rating", "title"},
	}))
	s.Nil(s.admin.ExpandPrepopulated(nil))
}

func (s *AdminTestSuite) TestExpandLayout() {
	layout := s.admin.Expand(context.Background(), admin.Layout{
		Fields:       []string{"title", "slug"},
		ListDisplay:  []string{"title"},
		ListEditable: []string{"title"},
		Prepopulated: map[string][]string{"slug": {"title"}},
	})

	s.Equal([]string{"title_en", "title_de", "slug"}, layout.Fields)
	s.Equal([]string{"title_en", "title_de"}, layout.ListDisplay)
	s.Equal([]string{"title_en", "title_de"}, layout.ListEditable)
	s.Equal(map[string][]string{"slug": {"title_en"}}, layout.Prepopulated)
	s.Len(layout.Fieldsets, 3)
}

func (s *AdminTestSuite) TestLocalizedLabel() {
	ctx := context.Background()
	deCtx := localization.Activate(ctx, "de")

	s.Equal("Title", s.admin.LocalizedLabel(ctx, "title"))
	s.Equal("Title [de]", s.admin.LocalizedLabel(ctx, "title_de"))
	s.Equal("Titel [de]", s.admin.LocalizedLabel(deCtx, "title_de"))
	s.Equal("Fließtext [en]", s.admin.LocalizedLabel(deCtx, "body_en"))
	s.Equal("unknown", s.admin.LocalizedLabel(ctx, "unknown"))
}

func (s *AdminTestSuite) TestPatchForm() {
	textarea := admin.Widget{Type: "textarea", Attrs: map[string]string{"class": "rich", "rows": "4"}}
	form := []admin.FormField{
		{Name: "title", Required: true, Editable: true, Widget: textarea},
		{Name: "title_en", Editable: true, Blank: true, Widget: admin.Widget{Type: "text"}},
		{Name: "title_de", Editable: true, Blank: true, Widget: admin.Widget{Type: "text"}},
		{Name: "body", Editable: true, Blank: true, Widget: admin.Widget{Type: "text"}},
		{Name: "body_en", Editable: true, Blank: true, Widget: admin.Widget{Type: "text"}},
		{Name: "slug", Required: true, Editable: true, Widget: admin.Widget{Type: "text"}},
	}

	patched := s.admin.PatchForm(form)
	s.Require().Len(patched, len(form))

	title := patched[0]
	s.False(title.Editable)
	s.False(title.Required)
	s.True(title.Blank)

	titleEN := patched[1]
	s.True(titleEN.Required)
	s.False(titleEN.Blank)
	s.Equal("textarea", titleEN.Widget.Type)
	s.Equal("rich modeltranslation modeltranslation-default", titleEN.Widget.Attrs["class"])
	s.Equal("4", titleEN.Widget.Attrs["rows"])

	titleDE := patched[2]
	s.False(titleDE.Required)
	s.True(titleDE.Blank)
	s.Equal("rich modeltranslation", titleDE.Widget.Attrs["class"])

	s.Equal("rich", textarea.Attrs["class"], "base widget must not be mutated")

	body := patched[3]
	s.False(body.Editable)
	s.False(body.Required)

	bodyEN := patched[4]
	s.False(bodyEN.Required)
	s.Equal("modeltranslation modeltranslation-default", bodyEN.Widget.Attrs["class"])

	s.Equal(form[5], patched[5])
}

func (s *AdminTestSuite) TestSaveModelSyncsDefaultLanguage() {
	ctx := context.Background()
	def, err := s.registry.Schema().Definition("blog.Article")
	s.Require().NoError(err)

	inst := def.New()
	inst.SetRaw("title", "stale")
	inst.SetRaw("title_en", "Hello")
	inst.SetRaw("title_de", "Hallo")
	inst.SetRaw("body", "stale body")

	saver := &recordingSaver{}
	s.Require().NoError(s.admin.SaveModel(ctx, inst, saver))

	s.Require().Len(saver.saved, 1)
	s.Equal("Hello", inst.Raw("title"))
	s.Equal("", inst.Raw("body"))
}
