package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"studioflow/internal/class"
	"studioflow/internal/client"
	"studioflow/internal/logger"
	"studioflow/internal/metrics"
)

const (
	queueKey      = "notifications"
	deadLetterKey = "notifications:failed"
	maxTries      = 3
)

type Job struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Kind    string    `json:"kind"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues notifications in Redis and delivers them over SMTP from a
// background worker. Enqueue failures are logged and dropped: notifications
// never block or fail a booking or subscription operation.
type Service struct {
	redis      *redis.Client
	clientRepo client.Repository
	classRepo  class.Repository
	from       string
	fromName   string
	smtpHost   string
	smtpPort   string
	smtpUser   string
	smtpPass   string
}

func New(clientRepo client.Repository, classRepo class.Repository, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		clientRepo: clientRepo,
		classRepo:  classRepo,
		from:       fromEmail,
		fromName:   fromName,
		smtpHost:   smtpHost,
		smtpPort:   smtpPort,
		smtpUser:   smtpUser,
		smtpPass:   smtpPass,
	}
}

// NewWithRedis is for tests that inject a mock Redis client.
func NewWithRedis(rdb *redis.Client, clientRepo client.Repository, classRepo class.Repository) *Service {
	return &Service{redis: rdb, clientRepo: clientRepo, classRepo: classRepo, from: "noreply@studio.test", fromName: "StudioFlow"}
}

func (s *Service) enqueue(ctx context.Context, job Job) {
	job.Created = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal notification job: %v", err)
		return
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Errorf("Failed to queue notification to %s: %v", job.To, err)
		metrics.RecordNotification(job.Kind, "enqueue_failed")
		return
	}

	metrics.NotificationQueueLength.Set(float64(s.QueueLength(ctx)))
	logger.Infof("Notification queued: %s to %s", job.Subject, job.To)
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	job.Tries++
	if err := s.sendNow(job); err != nil {
		logger.Errorf("Failed to send notification to %s: %v", job.To, err)

		if job.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, string(data))
			logger.Infof("Retrying notification to %s (attempt %d)", job.To, job.Tries+1)
		} else {
			metrics.RecordNotification(job.Kind, "failed")
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordNotification(job.Kind, "sent")
	metrics.NotificationQueueLength.Set(float64(s.QueueLength(ctx)))
	logger.Infof("Notification sent to %s", job.To)
}

func (s *Service) sendNow(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job Job, sendErr error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": sendErr.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), deadLetterKey, string(data))
	logger.Errorf("Notification to %s moved to failed queue after %d attempts", job.To, job.Tries)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

// lookup resolves the client and class a notification refers to. A failed
// lookup drops the notification.
func (s *Service) lookup(ctx context.Context, clientID, classID int) (*client.Client, *class.Class, bool) {
	cl, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		logger.Errorf("Notification lookup failed for client %d: %v", clientID, err)
		return nil, nil, false
	}
	cls, err := s.classRepo.GetByID(ctx, classID)
	if err != nil {
		logger.Errorf("Notification lookup failed for class %d: %v", classID, err)
		return nil, nil, false
	}
	return cl, cls, true
}

func (s *Service) BookingConfirmed(ctx context.Context, clientID, classID int) {
	cl, cls, ok := s.lookup(ctx, clientID, classID)
	if !ok {
		return
	}

	body := fmt.Sprintf(`Hi %s,

Your spot is confirmed!

Class: %s
Time: %s

See you at the studio!

- StudioFlow`, cl.Name, cls.Name, cls.StartsAt.Format("Jan 2, 2006 at 3:04 PM"))

	s.enqueue(ctx, Job{
		To:      cl.Email,
		Name:    cl.Name,
		Subject: "Booking Confirmed - " + cls.Name,
		Body:    body,
		Kind:    "booking_confirmed",
	})
}

func (s *Service) BookingCancelled(ctx context.Context, clientID, classID int) {
	cl, cls, ok := s.lookup(ctx, clientID, classID)
	if !ok {
		return
	}

	body := fmt.Sprintf(`Hi %s,

Your booking has been cancelled and the class credit is back on your subscription.

Class: %s
Time: %s

- StudioFlow`, cl.Name, cls.Name, cls.StartsAt.Format("Jan 2, 2006 at 3:04 PM"))

	s.enqueue(ctx, Job{
		To:      cl.Email,
		Name:    cl.Name,
		Subject: "Booking Cancelled - " + cls.Name,
		Body:    body,
		Kind:    "booking_cancelled",
	})
}

func (s *Service) WaitlistPromoted(ctx context.Context, clientID, classID int) {
	cl, cls, ok := s.lookup(ctx, clientID, classID)
	if !ok {
		return
	}

	body := fmt.Sprintf(`Hi %s,

Good news: a spot opened up and you are now booked!

Class: %s
Time: %s

See you at the studio!

- StudioFlow`, cl.Name, cls.Name, cls.StartsAt.Format("Jan 2, 2006 at 3:04 PM"))

	s.enqueue(ctx, Job{
		To:      cl.Email,
		Name:    cl.Name,
		Subject: "You're In - " + cls.Name,
		Body:    body,
		Kind:    "waitlist_promoted",
	})
}
