// Package mock provides test doubles for the ai interfaces.
//
// MockEmbedder returns deterministic unit-scale vectors derived from an FNV
// hash of the input, so the same text always embeds identically. Behavior can
// be replaced per test through EmbedTextFunc and EmbedTextsFunc, which is how
// tests inject transient failures and wrong-length vectors.
//
//	m := mock.NewMockEmbedderWithDimensions(8)
//	calls := 0
//	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    calls++
//	    if calls < 3 {
//	        return nil, errors.New("transient")
//	    }
//	    return mock.Vector(text, 8), nil
//	}
package mock
