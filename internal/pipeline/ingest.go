package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/pdftext"
	"github.com/spigell/talentmatch/internal/utils"
)

// validationSampleLength caps the text sent to the resume sanity check.
const validationSampleLength = 2000

// Ingest turns the uploaded resume into normalised text and sanity-checks it.
type Ingest struct {
	toolkit
	extractor pdftext.Extractor
	validate  bool
	marker    string
	markerMax int
}

func NewIngest(deps Deps, cfg Config) *Ingest {
	deps = deps.withDefaults()
	cfg = cfg.withDefaults()
	return &Ingest{
		toolkit:   newToolkit(deps, cfg),
		extractor: deps.Extractor,
		validate:  cfg.ValidateResume,
		marker:    cfg.FixtureMarker,
		markerMax: cfg.FixtureMaxLength,
	}
}

func (s *Ingest) Name() string { return "ingest" }

// Ready is false only when a run enters mid-chain with a profile and no resume.
func (s *Ingest) Ready(state *models.State) bool {
	return !state.ResumeText.Empty() || state.CandidateProfile == nil
}

func (s *Ingest) Run(ctx context.Context, state *models.State) error {
	log := s.log(state, s.Name())

	text, err := s.readText(state.ResumeText, log)
	if err != nil {
		return err
	}
	state.ResumeText = models.TextInput(text)

	if s.skipValidation(text) {
		log.Debug("resume validation skipped", zap.Int("text_length", utf8.RuneCountInString(text)))
	} else if err := s.checkResume(ctx, text, log); err != nil {
		return err
	}

	state.Advance(models.StepExtract)
	return nil
}

func (s *Ingest) readText(input *models.ResumeInput, log *zap.Logger) (string, error) {
	if input.Empty() {
		return "", models.Mark(errors.New("no resume data provided"), models.ErrInput)
	}

	if text, ok := input.Text(); ok {
		return utils.CollapseWhitespace(text), nil
	}

	raw, _ := input.Bytes()
	isText := utf8.Valid(raw)
	if isText && !pdftext.IsPDF(raw) {
		return nonEmpty(utils.CollapseWhitespace(string(raw)))
	}

	extracted, extractErr := s.extractor.ExtractText(raw)
	if extractErr == nil {
		text := utils.CollapseWhitespace(extracted)
		if text == "" {
			// A readable PDF without a text layer, such as a scan.
			return "", models.Mark(errors.New("no text could be extracted from the PDF"), models.ErrInput)
		}
		log.Debug("text extracted from PDF", zap.Int("text_length", utf8.RuneCountInString(text)))
		return text, nil
	}

	if isText {
		log.Warn("upload is not a readable PDF, reading it as plain text", zap.Error(extractErr))
		return nonEmpty(utils.CollapseWhitespace(string(raw)))
	}

	return "", models.Mark(errors.Wrap(extractErr, "no text could be extracted from the PDF"), models.ErrInput)
}

func nonEmpty(text string) (string, error) {
	if text == "" {
		return "", models.Mark(errors.New("no text could be extracted from the upload"), models.ErrInput)
	}
	return text, nil
}

// skipValidation holds for short resumes carrying the fixture marker.
func (s *Ingest) skipValidation(text string) bool {
	if !s.validate {
		return true
	}
	return s.marker != "" &&
		utf8.RuneCountInString(text) < s.markerMax &&
		strings.Contains(text, s.marker)
}

func (s *Ingest) checkResume(ctx context.Context, text string, log *zap.Logger) error {
	prompt := renderPrompt(promptValidate, map[string]string{
		"RESUME_TEXT": headRunes(text, validationSampleLength),
	})

	verdict, err := s.generate(ctx, log, "validate resume", prompt)
	if err != nil {
		return err
	}

	if strings.Contains(strings.ToUpper(verdict), "INVALID") {
		return models.Mark(errors.New("invalid resume format detected"), models.ErrValidation)
	}
	return nil
}

func headRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
