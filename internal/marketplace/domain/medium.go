package domain

// Medium identifies a fungible payment currency accepted by the marketplace,
// or the native currency sentinel. Fungible mediums are pull-style (allowance
// checked), the native medium is push-style with over-payment refund.
type Medium string

// MediumNative is the native-currency sentinel.
const MediumNative Medium = "native"

// IsNative reports whether m is the native-currency sentinel.
func (m Medium) IsNative() bool {
	return m == MediumNative
}

func (m Medium) String() string {
	return string(m)
}
