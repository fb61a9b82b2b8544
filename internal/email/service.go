package email

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

// TemplateElement identifies the different parts of an email template.
type TemplateElement string

const (
	ElementSubject TemplateElement = "subject"
	ElementBody    TemplateElement = "body"
)

// Sender is responsible for actually sending an email.
type Sender interface {
	Send(ctx context.Context, sender, recipient Address, subject, body string) error
}

// Service renders named email templates and hands them to a Sender.
//
// Templates live as <name>.tmpl files in the root of the provided file
// system. Each file must define a "subject" and a "body" template.
type Service struct {
	fs     fs.FS
	from   Address
	sender Sender
}

func NewService(fsys fs.FS, from Address, sender Sender) *Service {
	return &Service{
		fs:     fsys,
		from:   from,
		sender: sender,
	}
}

// Send renders the template with the given name and sends the result to
// the recipient.
func (s *Service) Send(ctx context.Context, name string, recipient Address, data any) error {
	tmpl, err := parse(s.fs, name)
	if err != nil {
		return err
	}

	subject, err := render(tmpl, ElementSubject, data)
	if err != nil {
		return err
	}

	body, err := render(tmpl, ElementBody, data)
	if err != nil {
		return err
	}

	return s.sender.Send(ctx, s.from, recipient, strings.TrimSpace(subject), body)
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	// Template names are generally hardcoded, but if for some reason we
	// end up with user input as a name, we don't want it to be usable
	// for directory traversal.
	if err := validateName(name); err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).ParseFS(fsys, name+".tmpl")
	if err != nil {
		return nil, err
	}

	for _, el := range []TemplateElement{ElementSubject, ElementBody} {
		if tmpl.Lookup(string(el)) == nil {
			return nil, fmt.Errorf("template %q is missing the %s element", name, el)
		}
	}

	return tmpl, nil
}

func render(tmpl *template.Template, element TemplateElement, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, string(element), data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// validateName checks if all characters are alphanumeric, dashes or underscores.
func validateName(name string) error {
	for _, c := range name {
		if !validTemplateRune(c) {
			return fmt.Errorf("invalid character %v in template name: %s", c, name)
		}
	}
	return nil
}

func validTemplateRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
