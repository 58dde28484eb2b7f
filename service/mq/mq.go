package mq

import (
	"cognito-backend/config"
	"cognito-backend/service/ingest"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/apache/rocketmq-client-go/v2"
	c "github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"github.com/avast/retry-go/v4"
)

const (
	TopicIngest   = "topic_ingest"
	TagIntakeURL  = "tag_intake_url"
	TagTranscribe = "tag_transcribe"
	TagTranscript = "tag_transcript"

	consumeGroupIngest = "cg_ingest"

	sendMessageAttempts  = 3
	maxReconsumeTimes    = 5
	consumeGoroutineNums = 10
)

var (
	// 全局生产者
	producerInstance rocketmq.Producer

	// 摄取业务消费者
	consumerIngest rocketmq.PushConsumer

	// 消息处理器表，按topic:tag索引
	handlers = make(map[string]MessageHandler)
)

type MessageHandler func(context.Context, *primitive.MessageExt) error

type Message struct {
	Topic   string
	Tag     string
	Payload any
}

func init() {
	// 设置RocketMQ客户端（使用rlog）的日志级别
	rlog.SetLogLevel("warn")

	var err error
	consumerIngest, err = rocketmq.NewPushConsumer(
		c.WithNameServer(config.Cfg.MQ.NameServer),
		c.WithGroupName(consumeGroupIngest),
		c.WithConsumerModel(c.Clustering),
		c.WithConsumeFromWhere(c.ConsumeFromLastOffset),
		c.WithMaxReconsumeTimes(maxReconsumeTimes),
		c.WithConsumeGoroutineNums(consumeGoroutineNums),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to create consumer: %v", err))
	}

	producerInstance, err = rocketmq.NewProducer(
		producer.WithNameServer(config.Cfg.MQ.NameServer),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to create producer: %v", err))
	}
}

func Run(worker *ingest.Worker) error {
	// 注册消息处理器，三类摄取任务共用一个topic，按tag分发
	handlers[handlerKey(TopicIngest, TagIntakeURL)] = worker.HandleIntakeMessage
	handlers[handlerKey(TopicIngest, TagTranscribe)] = worker.HandleTranscribeMessage
	handlers[handlerKey(TopicIngest, TagTranscript)] = worker.HandleTranscriptMessage

	tagExpr := fmt.Sprintf("%s || %s || %s", TagIntakeURL, TagTranscribe, TagTranscript)
	if err := subscribe(consumerIngest, TopicIngest, tagExpr); err != nil {
		return fmt.Errorf("failed to register handler, topic: %s, tags: %s, err: %v", TopicIngest, tagExpr, err)
	}

	if err := producerInstance.Start(); err != nil {
		return fmt.Errorf("failed to start producer: %v", err)
	}

	if err := consumerIngest.Start(); err != nil {
		return fmt.Errorf("failed to start consumer: %v", err)
	}
	return nil
}

func handlerKey(topic, tag string) string {
	return topic + ":" + tag
}

// subscribe 订阅topic并按tag分发到处理器
func subscribe(consumer rocketmq.PushConsumer, topic string, tagExpr string) error {
	selector := c.MessageSelector{
		Type:       c.TAG,
		Expression: tagExpr,
	}

	err := consumer.Subscribe(topic, selector, func(ctx context.Context, messages ...*primitive.MessageExt) (c.ConsumeResult, error) {
		for _, msg := range messages {
			h := handlers[handlerKey(msg.Topic, msg.GetTags())]
			if h == nil {
				slog.Warn("No message handler found", "topic", msg.Topic, "tag", msg.GetTags())
				continue
			}

			if err := h(ctx, msg); err != nil {
				slog.Error("Failed to process message",
					"topic", msg.Topic,
					"tag", msg.GetTags(),
					"msg_id", msg.MsgId,
					"error", err)
				return c.ConsumeRetryLater, err
			}
		}
		return c.ConsumeSuccess, nil
	})

	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %v", topic, err)
	}

	return nil
}

// SendMessage 向MQ发送消息
func SendMessage(ctx context.Context, message *Message) error {
	payloadJSON, err := json.Marshal(message.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	msg := primitive.NewMessage(message.Topic, payloadJSON)
	if message.Tag != "" {
		msg = msg.WithTag(message.Tag)
	}

	err = retry.Do(
		func() error {
			_, err := producerInstance.SendSync(ctx, msg)
			return err
		},
		retry.Attempts(sendMessageAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying to send message",
				"attempt", n+1,
				"topic", msg.Topic,
				"err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s after retries: %v", msg.Topic, err)
	}

	return nil
}

// Shutdown 关闭MQ服务
func Shutdown() {
	if producerInstance != nil {
		producerInstance.Shutdown()
	}
	if consumerIngest != nil {
		consumerIngest.Shutdown()
	}
}
