// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// パイプラインの各段階（読み込み、学習、成果物の書き出し）で発生する致命的な条件を
// 型付きのエラーとして表現し、cockroachdb/errors によるスタックトレースを付与します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("bikeshare-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// DataConversionWarning は入力値が変換できず行が除外された場合の警告です。
type DataConversionWarning struct {
	Field  string
	Count  int
	Reason string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("%d rows excluded: field %q could not be converted (%s)", w.Count, w.Field, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("field", w.Field).
		Int("count", w.Count).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(field string, count int, reason string) *DataConversionWarning {
	return &DataConversionWarning{Field: field, Count: count, Reason: reason}
}

// ===========================================================================
//
//	パイプラインの致命的エラー
//
// ===========================================================================

var (
	// ErrSourceUnavailable は入力ファイルが見つからない場合のエラーです。
	ErrSourceUnavailable = New("source unavailable")

	// ErrTrainingDataInsufficient は学習データが空、または分割が退化している場合のエラーです。
	ErrTrainingDataInsufficient = New("training data insufficient")

	// ErrArtifactWriteFailed は成果物の書き込みに失敗した場合のエラーです。
	ErrArtifactWriteFailed = New("artifact write failed")
)

// SourceUnavailableError は指定されたパス配下に入力ファイルが存在しない場合のエラーです。
// 上流データの可用性はこのジョブの管理外のため、リトライしません。
type SourceUnavailableError struct {
	Location string
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("bikeshare: no input files found under %q", e.Location)
}

// Is は errors.Is(err, ErrSourceUnavailable) を満たすために実装します。
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SourceUnavailableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("location", e.Location).Str("type", "SourceUnavailable")
}

// NewSourceUnavailableError は新しいSourceUnavailableErrorを作成し、スタックトレースを付与します。
func NewSourceUnavailableError(location string) error {
	return errors.WithStack(&SourceUnavailableError{Location: location})
}

// TrainingDataInsufficientError は学習前に検出された退化したデータ条件を表します。
type TrainingDataInsufficientError struct {
	Op     string
	Rows   int
	Reason string
}

func (e *TrainingDataInsufficientError) Error() string {
	return fmt.Sprintf("bikeshare: %s: training data insufficient (%d rows): %s", e.Op, e.Rows, e.Reason)
}

// Is は errors.Is(err, ErrTrainingDataInsufficient) を満たすために実装します。
func (e *TrainingDataInsufficientError) Is(target error) bool {
	return target == ErrTrainingDataInsufficient
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrainingDataInsufficientError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rows", e.Rows).
		Str("reason", e.Reason).
		Str("type", "TrainingDataInsufficient")
}

// NewTrainingDataInsufficientError は新しいTrainingDataInsufficientErrorを作成します。
func NewTrainingDataInsufficientError(op string, rows int, reason string) error {
	return errors.WithStack(&TrainingDataInsufficientError{Op: op, Rows: rows, Reason: reason})
}

// ArtifactWriteFailedError は成果物の書き込み失敗を表します。一度だけ試行し、リトライしません。
type ArtifactWriteFailedError struct {
	Path string
	Err  error
}

func (e *ArtifactWriteFailedError) Error() string {
	return fmt.Sprintf("bikeshare: failed to write artifact %q: %v", e.Path, e.Err)
}

func (e *ArtifactWriteFailedError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrArtifactWriteFailed) を満たすために実装します。
func (e *ArtifactWriteFailedError) Is(target error) bool {
	return target == ErrArtifactWriteFailed
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ArtifactWriteFailedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		AnErr("cause", e.Err).
		Str("type", "ArtifactWriteFailed")
}

// NewArtifactWriteFailedError は新しいArtifactWriteFailedErrorを作成します。
func NewArtifactWriteFailedError(path string, err error) error {
	return errors.WithStack(&ArtifactWriteFailedError{Path: path, Err: err})
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("bikeshare: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("bikeshare: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bikeshare: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("bikeshare: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError はモデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bikeshare: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("bikeshare: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
