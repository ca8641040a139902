package mail

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"strings"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Template names.
const (
	TemplateGeneral = "general"
	TemplateBulk    = "bulk"
	TemplateInvoice = "invoice"
	TemplateWelcome = "welcome"
)

// GeneralData is a plain notice.
type GeneralData struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Name  string `json:"name,omitempty"`
}

// BulkData is one recipient's copy of a bulk message.
type BulkData struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

// WelcomeData greets a newly registered account.
type WelcomeData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// InvoiceItem is one invoice line.
type InvoiceItem struct {
	Description string  `json:"description" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	UnitPrice   float64 `json:"unitPrice" binding:"min=0"`
}

// Amount is Quantity times UnitPrice.
func (i InvoiceItem) Amount() float64 { return float64(i.Quantity) * i.UnitPrice }

// InvoiceData is an invoice email.
type InvoiceData struct {
	Number       string        `json:"number" binding:"required"`
	CustomerName string        `json:"customerName" binding:"required"`
	DueDate      string        `json:"dueDate,omitempty"`
	Currency     string        `json:"currency,omitempty"`
	Items        []InvoiceItem `json:"items" binding:"required,min=1,dive"`
	Notes        string        `json:"notes,omitempty"`
}

// Total sums the line amounts.
func (d InvoiceData) Total() float64 {
	var total float64
	for _, it := range d.Items {
		total += it.Amount()
	}
	return total
}

// payloads maps a template to the type its data decodes into.
var payloads = map[string]func() any{
	TemplateGeneral: func() any { return &GeneralData{} },
	TemplateBulk:    func() any { return &BulkData{} },
	TemplateInvoice: func() any { return &InvoiceData{} },
	TemplateWelcome: func() any { return &WelcomeData{} },
}

type contextData struct {
	AppName     string
	FrontendURL string
	Data        any
}

// Renderer turns a template name and its data into a subject and an HTML
// body.
type Renderer struct {
	appName     string
	frontendURL string
	templates   map[string]*template.Template
}

// NewRenderer parses the embedded templates, each on top of _base.
func NewRenderer(appName, frontendURL string) (*Renderer, error) {
	funcs := template.FuncMap{
		"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}
	r := &Renderer{
		appName:     appName,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		templates:   make(map[string]*template.Template, len(payloads)),
	}
	for name := range payloads {
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").
			ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Decode unmarshals raw into the data type of the named template.
func Decode(name string, raw json.RawMessage) (any, error) {
	mk, ok := payloads[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}
	data := mk()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", name, err)
		}
	}
	return data, nil
}

// Render executes the named template. The subject is returned unescaped
// since it goes into a header, not HTML.
func (r *Renderer) Render(name string, data any) (subject, body string, err error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	ctx := contextData{AppName: r.appName, FrontendURL: r.frontendURL, Data: data}
	var subj, out bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subj, "subject", ctx); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&out, "base", ctx); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return html.UnescapeString(strings.TrimSpace(subj.String())), out.String(), nil
}
