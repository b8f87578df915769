package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
)

// Mailer sends e-mail through Amazon SES. Without a from-address it is
// disabled and only logs what it would have sent.
type Mailer struct {
	client  *sesv2.Client
	from    string
	enabled bool
}

// NewMailer creates a Mailer for region. An empty from disables it.
func NewMailer(ctx context.Context, region, from string) (*Mailer, error) {
	if from == "" {
		log.Info().Msg("mailer disabled: SES_FROM_EMAIL not configured")
		return &Mailer{}, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Info().Str("from", from).Str("region", region).Msg("mailer enabled")
	return &Mailer{client: sesv2.NewFromConfig(cfg), from: from, enabled: true}, nil
}

// Enabled reports whether mail is actually sent.
func (m *Mailer) Enabled() bool { return m.enabled }

// Send delivers one message to every recipient.
func (m *Mailer) Send(ctx context.Context, to []string, subject, htmlBody, textBody string) error {
	if !m.enabled || len(to) == 0 {
		log.Info().Strs("to", to).Str("subject", subject).Msg("skipping e-mail")
		return nil
	}
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send e-mail: %w", err)
	}
	log.Info().Strs("to", to).Str("subject", subject).Msg("e-mail sent")
	return nil
}

var reportHTML = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Season {{.SeasonID}} archived</h2>
	<p>{{len .Standings}} ranked players, archived {{.ArchivedAt.Format "2006-01-02 15:04 MST"}}.</p>
	<table cellpadding="4">
		<tr><th>Rank</th><th>Player</th><th>Score</th></tr>
		{{range .Standings}}<tr><td>{{.Rank}}</td><td>{{.DisplayName}}</td><td>{{.Score}}</td></tr>
		{{end}}
	</table>
</body>
</html>`))

// SeasonReport renders the archive report of a season.
func SeasonReport(rep leaderboard.Report) (subject, htmlBody, textBody string, err error) {
	subject = fmt.Sprintf("Double Words: season %s archived", rep.SeasonID)

	var buf bytes.Buffer
	if err := reportHTML.Execute(&buf, rep); err != nil {
		return "", "", "", fmt.Errorf("render season report: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Season %s archived with %d ranked players.\n\n", rep.SeasonID, len(rep.Standings))
	for _, s := range rep.Standings {
		fmt.Fprintf(&text, "%3d. %s (%d)\n", s.Rank, s.DisplayName, s.Score)
	}
	return subject, buf.String(), text.String(), nil
}

// SendSeasonReport mails the archive report to the operators in to.
func (m *Mailer) SendSeasonReport(ctx context.Context, to []string, rep leaderboard.Report) error {
	subject, htmlBody, textBody, err := SeasonReport(rep)
	if err != nil {
		return err
	}
	return m.Send(ctx, to, subject, htmlBody, textBody)
}
