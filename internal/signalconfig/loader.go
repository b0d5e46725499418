package signalconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/sigaudit/internal/signal"
)

// Load reads a YAML signal document and validates it against the registry
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string, registry *signal.Registry) (*Document, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, err
	}

	if err := Validate(&doc, registry); err != nil {
		return nil, data, err
	}

	return &doc, data, nil
}

// Parse decodes and validates an in-memory YAML document (테스트/임베드용)
func Parse(data []byte, registry *signal.Registry) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	if err := Validate(&doc, registry); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Hash generates SHA256 hash from a validated document (canonical JSON).
// export 레코드와 함께 남겨 재현성을 보장한다.
// 주의: map 순서 때문에 params는 json.Marshal의 키 정렬에 의존
func Hash(doc *Document) (string, error) {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
