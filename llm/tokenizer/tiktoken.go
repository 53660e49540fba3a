package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// 模型前缀 → tiktoken 编码，按最长前缀匹配
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"gpt-4.1", "o200k_base"},
	{"gpt-5", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"o4", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}

func lookupEncoding(model string) (string, bool) {
	best, enc := -1, ""
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) && len(m.prefix) > best {
			best, enc = len(m.prefix), m.encoding
		}
	}
	return enc, best >= 0
}

// tiktokenTokenizer 懒加载 tiktoken 编码
type tiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

func newTiktoken(encoding string) *tiktokenTokenizer {
	return &tiktokenTokenizer{encoding: encoding}
}

// init 首次使用时加载编码（可能需要下载 BPE 数据）
func (t *tiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *tiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *tiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := 0
	for _, msg := range messages {
		// <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	return total + 3, nil
}

func (t *tiktokenTokenizer) Name() string {
	return "tiktoken[" + t.encoding + "]"
}
