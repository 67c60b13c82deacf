// Package model defines the matrix-level contracts shared by the regressors
// and the scaler, plus fitted-state bookkeeping and the stage envelope used
// for persistence.
package model

import "gonum.org/v1/gonum/mat"

// Regressor は行列と目的変数から学習し、行ごとの予測値を返すモデル
//
// Predict の戻り値は n×1 の列ベクトル。
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	IsFitted() bool
}

// Transformer は列ごとの統計量を学習して行列を変換する前処理
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
	IsFitted() bool
}
