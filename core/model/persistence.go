package model

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// Envelope は永続化されたステージの共通ヘッダ
//
// Kind で復元先の型を判定し、Params に型固有のJSONを格納する。
type Envelope struct {
	Kind    string          `json:"kind"`
	Version int             `json:"version"`
	Params  json.RawMessage `json:"params"`
}

// EnvelopeVersion は現在のステージ書式のバージョン
const EnvelopeVersion = 1

// Marshal はステージをEnvelopeで包んでJSONに変換する
//
// 使用例:
//
//	data, err := model.Marshal("standard_scaler", scaler)
func Marshal(kind string, v interface{}) ([]byte, error) {
	params, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", kind)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{Kind: kind, Version: EnvelopeVersion, Params: params}); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s envelope", kind)
	}
	return buf.Bytes(), nil
}

// Unmarshal はEnvelopeを読み取り、Kindを返す。Paramsの復号は呼び出し側が行う。
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode stage envelope")
	}
	if env.Version != EnvelopeVersion {
		return nil, errors.NewValidationError("version", "unsupported stage version", env.Version)
	}
	return &env, nil
}
