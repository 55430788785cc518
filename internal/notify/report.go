// Package notify sends the repricing report by email and publishes a short alert
// to an SNS topic.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/shopspring/decimal"

	awsclient "datedriven/internal/common/aws"
	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/repricing"
)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// TopicPublisher is satisfied by *aws.SNSClient.
type TopicPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// EmailNotifier mails the full report to a fixed recipient list.
type EmailNotifier struct {
	sender     EmailSender
	from       string
	recipients []string
	logger     logger.Logger
}

func NewEmailNotifier(sender EmailSender, from string, recipients []string, log logger.Logger) *EmailNotifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &EmailNotifier{sender: sender, from: from, recipients: recipients, logger: log}
}

func (n *EmailNotifier) Notify(ctx context.Context, report *repricing.Report) error {
	if len(n.recipients) == 0 {
		return nil
	}
	body, err := FormatReport(report)
	if err != nil {
		return apperrors.NewNotificationFailedError("email", err)
	}
	input := awsclient.TextEmail(n.from, n.recipients, Subject(report), body)
	if _, err := n.sender.SendEmail(ctx, input); err != nil {
		return apperrors.NewNotificationFailedError("email", err)
	}
	n.logger.Info("pricing report emailed", map[string]interface{}{
		"runId":      report.RunID,
		"recipients": len(n.recipients),
	})
	return nil
}

// TopicNotifier publishes a one-paragraph summary when at least one price
// moved off its base.
type TopicNotifier struct {
	publisher TopicPublisher
	topicARN  string
	logger    logger.Logger
}

func NewTopicNotifier(publisher TopicPublisher, topicARN string, log logger.Logger) *TopicNotifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &TopicNotifier{publisher: publisher, topicARN: topicARN, logger: log}
}

func (n *TopicNotifier) Notify(ctx context.Context, report *repricing.Report) error {
	active := report.Active()
	if len(active) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d of %d items repriced for upcoming events (%d pushed, %d failed). Uplift %s %s.",
		len(active), len(report.Prices), report.Pushed, report.Failed,
		report.TotalUplift().StringFixed(2), report.Currency)
	if report.DryRun {
		msg += " Dry run: no listing was changed."
	}
	if _, err := n.publisher.Publish(ctx, awsclient.TopicMessage(n.topicARN, Subject(report), msg)); err != nil {
		return apperrors.NewNotificationFailedError("sns", err)
	}
	n.logger.Info("pricing alert published", map[string]interface{}{"runId": report.RunID})
	return nil
}

// Subject is shared by both channels. SNS caps subjects at 100 characters.
func Subject(report *repricing.Report) string {
	return fmt.Sprintf("DateDriven pricing %s: %d active", report.Date.Format("2006-01-02"), len(report.Active()))
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"inc":   func(i int) int { return i + 1 },
}).Parse(`DATEDRIVEN PRICING RECOMMENDATIONS
Generated: {{.Report.Date.Format "2006-01-02 15:04"}}{{if .Report.DryRun}} (dry run){{end}}

SUMMARY
- Items priced: {{len .Report.Prices}}
- Price increases active: {{len .Active}}
- Pushed: {{.Report.Pushed}}  Failed: {{.Report.Failed}}  Skipped (no key dates): {{.Report.Skipped}}
{{range $i, $p := .Active}}
RECOMMENDATION #{{inc $i}}
ITEM: {{$p.Item.Name}}{{if $p.Item.SKU}} [{{$p.Item.SKU}}]{{end}}
EVENT: {{$p.Recommendation.Event.Label}} ({{$p.Recommendation.EventDate.Format "Jan 2"}}, {{$p.Recommendation.DaysUntil}} days)
SOURCES: {{$p.Recommendation.Event.Support}}
{{- with $p.Tier}}
TIER: {{.Consensus.Tier}} ({{.Consensus.Responded}} votes{{if .Consensus.Consensus}}, consensus{{end}}, confidence {{printf "%.2f" .Consensus.Confidence}})
WINDOW: {{.Window.Start.Format "2006-01-02"}} to {{.Window.End.Format "2006-01-02"}}
{{- end}}
MULTIPLIER: {{printf "%.2f" $p.Recommendation.Multiplier}}
BASE_PRICE: {{money $p.Item.BasePrice}}
NEW_PRICE: {{money $p.Recommendation.NewPrice}}{{if $p.Error}}
ERROR: {{$p.Error}}{{end}}
{{end}}
JSON_DATA_START
{{.JSON}}
JSON_DATA_END
`))

type jsonRow struct {
	Item       string  `json:"item"`
	SKU        string  `json:"sku,omitempty"`
	Event      string  `json:"event"`
	EventDate  string  `json:"event_date"`
	Multiplier float64 `json:"multiplier"`
	BasePrice  string  `json:"base_price"`
	NewPrice   string  `json:"new_price"`
	Tier       string  `json:"tier,omitempty"`
	PriceStart string  `json:"price_start,omitempty"`
	PriceEnd   string  `json:"price_end,omitempty"`
	Pushed     bool    `json:"pushed"`
}

// FormatReport renders the plain-text email body. Only active recommendations
// are listed; the trailing JSON block carries the same rows for automation.
func FormatReport(report *repricing.Report) (string, error) {
	active := report.Active()
	rows := make([]jsonRow, 0, len(active))
	for _, p := range active {
		row := jsonRow{
			Item:       p.Item.Name,
			SKU:        p.Item.SKU,
			Event:      p.Recommendation.Event.Label,
			EventDate:  p.Recommendation.EventDate.Format("2006-01-02"),
			Multiplier: p.Recommendation.Multiplier,
			BasePrice:  p.Item.BasePrice.StringFixed(2),
			NewPrice:   p.Recommendation.NewPrice.StringFixed(2),
			Pushed:     p.Pushed,
		}
		if p.Tier != nil {
			row.Tier = string(p.Tier.Consensus.Tier)
			row.PriceStart = p.Tier.Window.Start.Format("2006-01-02")
			row.PriceEnd = p.Tier.Window.End.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = reportTemplate.Execute(&buf, map[string]interface{}{
		"Report": report,
		"Active": active,
		"JSON":   string(data),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
