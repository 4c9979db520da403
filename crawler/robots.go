// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crawler

import (
	"context"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsPolicy caches one robots.txt per scheme and host.
type robotsPolicy struct {
	fetcher *HTTPFetcher
	agent   string
	cache   sync.Map // map[string]*robotstxt.RobotsData
}

func newRobotsPolicy(fetcher *HTTPFetcher, agent string) *robotsPolicy {
	return &robotsPolicy{fetcher: fetcher, agent: agent}
}

// allowed reports whether robots.txt permits fetching rawURL. Missing or
// unreadable robots files allow everything.
func (r *robotsPolicy) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	if data, ok := r.cache.Load(robotsURL); ok {
		return data.(*robotstxt.RobotsData).TestAgent(u.Path, r.agent)
	}

	data := r.load(ctx, robotsURL)
	actual, _ := r.cache.LoadOrStore(robotsURL, data)
	return actual.(*robotstxt.RobotsData).TestAgent(u.Path, r.agent)
}

func (r *robotsPolicy) load(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	allowAll, _ := robotstxt.FromStatusAndBytes(404, nil)

	resp, err := r.fetcher.get(ctx, robotsURL, false)
	if err != nil {
		return allowAll
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		return allowAll
	}
	return data
}
