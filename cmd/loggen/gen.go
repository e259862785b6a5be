package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	formatText      = "text"
	formatJSONLines = "json_lines"
	formatGB18030   = "gb18030"
)

var formats = []string{formatText, formatJSONLines, formatGB18030}

func isSupported(f string) bool {
	for _, s := range formats {
		if s == f {
			return true
		}
	}
	return false
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	switch f {
	case "json", "jsonl", "ndjson":
		return formatJSONLines
	case "gbk", "chinese":
		return formatGB18030
	}
	return f
}

// generator produces entries for one stream. An entry may span several
// lines (stack traces, pretty payloads). Each trace id is reused for a few
// consecutive entries so traces are non-trivial.
type generator struct {
	rnd       *rand.Rand
	format    string
	now       time.Time
	trace     string
	traceLeft int
	heartbeat float64
}

func newGenerator(format string, seed int64, start time.Time) *generator {
	return &generator{rnd: rand.New(rand.NewSource(seed)), format: format, now: start, heartbeat: 0.15}
}

func (g *generator) next() string {
	g.now = g.now.Add(time.Duration(g.rnd.Intn(1500)) * time.Millisecond)
	if g.traceLeft == 0 {
		g.trace = g.uuid()
		g.traceLeft = 1 + g.rnd.Intn(5)
	}
	g.traceLeft--

	switch g.format {
	case formatJSONLines:
		return g.jsonEntry()
	case formatGB18030:
		return g.chineseEntry()
	default:
		return g.textEntry()
	}
}

func (g *generator) ts() string { return g.now.Format("2006-01-02 15:04:05.000") }

func (g *generator) textEntry() string {
	thread := g.pick("main", "worker-1", "worker-2", "scheduler", "http-nio-8080-exec-3")
	if g.rnd.Float64() < g.heartbeat {
		return fmt.Sprintf("%s INFO [scheduler] heartbeat ok seq=%d", g.ts(), g.rnd.Intn(100000))
	}
	level := g.level()
	msg := fmt.Sprintf("%s user=%s took=%dms traceId=%s", g.message(), g.user(), g.rnd.Intn(900), g.trace)
	line := fmt.Sprintf("%s %s [%s] %s", g.ts(), level, thread, msg)
	switch {
	case level == "ERROR":
		return line + "\n" + g.stack()
	case g.rnd.Float64() < 0.1:
		return line + " payload=<" + g.payload(true) + ">"
	case g.rnd.Float64() < 0.05:
		return line + "\n" + g.payload(true)
	}
	return line
}

func (g *generator) jsonEntry() string {
	rec := map[string]any{
		"ts":      g.now.UTC().Format(time.RFC3339Nano),
		"level":   strings.ToLower(g.level()),
		"thread":  g.pick("main", "worker-1", "worker-2"),
		"msg":     g.message(),
		"traceId": g.trace,
		"user":    g.user(),
		"latency": g.rnd.Intn(900),
	}
	b, _ := json.Marshal(rec)
	return string(b)
}

func (g *generator) chineseEntry() string {
	msg := g.pick("用户登录成功", "订单创建完成", "数据库连接超时", "缓存未命中", "支付回调处理完毕")
	return fmt.Sprintf("%s %s [%s] %s traceId=%s", g.ts(), g.level(), g.pick("main", "worker-1"), msg, g.trace)
}

func (g *generator) stack() string {
	frames := []string{
		"java.lang.IllegalStateException: " + g.pick("connection reset", "pool exhausted", "unexpected null"),
		"\tat com.example.service.OrderService.place(OrderService.java:" + fmt.Sprint(40+g.rnd.Intn(200)) + ")",
		"\tat com.example.api.OrderController.create(OrderController.java:57)",
		"\tat java.base/java.lang.Thread.run(Thread.java:833)",
	}
	return strings.Join(frames[:2+g.rnd.Intn(len(frames)-1)], "\n")
}

func (g *generator) payload(pretty bool) string {
	body := map[string]any{
		"orderId": g.rnd.Intn(100000),
		"items":   []string{g.pick("book", "pen", "lamp"), g.pick("mug", "desk")},
		"paid":    g.rnd.Intn(2) == 1,
	}
	if pretty {
		b, _ := json.MarshalIndent(body, "", "  ")
		return string(b)
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func (g *generator) level() string {
	r := g.rnd.Float64()
	switch {
	case r < 0.6:
		return "INFO"
	case r < 0.8:
		return "DEBUG"
	case r < 0.95:
		return "WARN"
	default:
		return "ERROR"
	}
}

func (g *generator) message() string {
	return g.pick(
		"user authenticated",
		"request completed",
		"cache miss",
		"db query executed",
		"rate limit exceeded",
		"background job started",
		"invalid credentials",
	)
}

func (g *generator) user() string { return g.pick("alice", "bob", "carol", "dave") }

func (g *generator) uuid() string {
	b := make([]byte, 16)
	g.rnd.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func (g *generator) pick(opts ...string) string { return opts[g.rnd.Intn(len(opts))] }
