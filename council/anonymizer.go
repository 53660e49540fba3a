package council

import (
	"encoding/json"
	"fmt"
)

const labelPrefix = "Response "

// LabelFor 返回第 i 个（从 0 开始）匿名标签：
// Response A … Response Z, Response AA, Response AB …
func LabelFor(i int) string {
	if i < 0 {
		return ""
	}
	n := i + 1
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for l, r := 0, len(buf)-1; l < r; l, r = l+1, r-1 {
		buf[l], buf[r] = buf[r], buf[l]
	}
	return labelPrefix + string(buf)
}

// AnonymizationMap 单轮的 标签 ↔ 成员 双向映射，构造后只读
type AnonymizationMap struct {
	labels        []string
	labelToMember map[string]string
	memberToLabel map[string]string
}

func newAnonymizationMap(capacity int) *AnonymizationMap {
	return &AnonymizationMap{
		labels:        make([]string, 0, capacity),
		labelToMember: make(map[string]string, capacity),
		memberToLabel: make(map[string]string, capacity),
	}
}

// Anonymize 按输入顺序为成功的回答分配标签。
// 失败的回答不分配标签；重复的成员只保留第一次出现。
func Anonymize(responses []ModelResponse) *AnonymizationMap {
	m := newAnonymizationMap(len(responses))
	for _, r := range responses {
		if !r.Succeeded {
			continue
		}
		if _, dup := m.memberToLabel[r.MemberID]; dup {
			continue
		}
		m.add(LabelFor(len(m.labels)), r.MemberID)
	}
	return m
}

func (m *AnonymizationMap) add(label, memberID string) {
	m.labels = append(m.labels, label)
	m.labelToMember[label] = memberID
	m.memberToLabel[memberID] = label
}

// Resolve 标签 → 成员
func (m *AnonymizationMap) Resolve(label string) (string, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m.labelToMember[label]
	return id, ok
}

// LabelOf 成员 → 标签
func (m *AnonymizationMap) LabelOf(memberID string) (string, bool) {
	if m == nil {
		return "", false
	}
	label, ok := m.memberToLabel[memberID]
	return label, ok
}

// Labels 按分配顺序返回所有标签（副本）
func (m *AnonymizationMap) Labels() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Len 标签数量
func (m *AnonymizationMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.labels)
}

// Contains 标签是否属于本轮
func (m *AnonymizationMap) Contains(label string) bool {
	_, ok := m.Resolve(label)
	return ok
}

// LabelToMember 返回用于展示的 标签 → 成员 映射副本
func (m *AnonymizationMap) LabelToMember() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.labelToMember))
	for k, v := range m.labelToMember {
		out[k] = v
	}
	return out
}

type labelBinding struct {
	Label    string `json:"label"`
	MemberID string `json:"member_id"`
}

// MarshalJSON 以分配顺序输出映射
func (m *AnonymizationMap) MarshalJSON() ([]byte, error) {
	bindings := make([]labelBinding, 0, m.Len())
	if m != nil {
		for _, label := range m.labels {
			bindings = append(bindings, labelBinding{Label: label, MemberID: m.labelToMember[label]})
		}
	}
	return json.Marshal(bindings)
}

// UnmarshalJSON 从有序列表重建映射，拒绝破坏双射的输入
func (m *AnonymizationMap) UnmarshalJSON(data []byte) error {
	var bindings []labelBinding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return err
	}
	rebuilt := newAnonymizationMap(len(bindings))
	for _, b := range bindings {
		if _, dup := rebuilt.labelToMember[b.Label]; dup {
			return fmt.Errorf("duplicate label %q", b.Label)
		}
		if _, dup := rebuilt.memberToLabel[b.MemberID]; dup {
			return fmt.Errorf("member %q bound to more than one label", b.MemberID)
		}
		rebuilt.add(b.Label, b.MemberID)
	}
	*m = *rebuilt
	return nil
}
